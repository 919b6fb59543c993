package model

type Preferences struct {
	Language         string
	Theme            string
	FontSize         string
	AccentColor      string
	SidebarCollapsed bool
}
