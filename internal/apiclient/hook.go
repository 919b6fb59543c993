package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ResponseHook sees every response the client receives, before the body is
// read. Hooks must not consume the body.
type ResponseHook func(req *http.Request, resp *http.Response)

// DefaultAuthPaths are never reported as unauthorized: a 401 from the
// login call is a wrong password, and one from logout is expected.
var DefaultAuthPaths = []string{"/auth/login", "/auth/logout"}

// NewUnauthorizedHook calls onUnauthorized once for every 401 response
// whose target is not one of authPaths. The request is not retried.
func NewUnauthorizedHook(onUnauthorized func(ctx context.Context), authPaths ...string) ResponseHook {
	if len(authPaths) == 0 {
		authPaths = DefaultAuthPaths
	}

	return func(req *http.Request, resp *http.Response) {
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			return
		}

		target := TargetURL(req)
		for _, p := range authPaths {
			if strings.Contains(target, p) {
				return
			}
		}

		ctx := context.Background()
		if req != nil {
			ctx = context.WithoutCancel(req.Context())
		}
		onUnauthorized(ctx)
	}
}

// TargetURL extracts the request target from whatever the caller used to
// name it.
func TargetURL(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *http.Request:
		if t == nil || t.URL == nil {
			return ""
		}
		return t.URL.String()
	case *url.URL:
		if t == nil {
			return ""
		}
		return t.String()
	case url.URL:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}
