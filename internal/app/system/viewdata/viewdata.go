// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"net/http"

	"github.com/dkpmalut/lautdata/internal/app/system/authz"
	"github.com/dalemusser/waffle/pantry/httpnav"
)

// SiteName is shown in the page header and title.
const SiteName = "Statistik Kelautan dan Perikanan"

// NavItem is one entry of the top navigation bar.
type NavItem struct {
	Label  string
	Href   string
	Active bool
}

// BaseVM contains common fields for all view models.
// Embed this struct in feature-specific view models.
//
//	type pageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
type BaseVM struct {
	SiteName string

	IsLoggedIn bool
	Role       string
	UserName   string
	IsAdmin    bool
	CanImport  bool

	Title       string
	BackURL     string
	CurrentPath string
	Nav         []NavItem
}

// NewBaseVM fills the shared page fields from the request.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	role, name, _, signedIn := authz.UserCtx(r)
	path := httpnav.CurrentPath(r)

	return BaseVM{
		SiteName:    SiteName,
		IsLoggedIn:  signedIn,
		Role:        role,
		UserName:    name,
		IsAdmin:     authz.IsAdmin(r),
		CanImport:   authz.CanImport(r),
		Title:       title,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: path,
		Nav:         navFor(path, authz.CanImport(r), authz.CanReadMessages(r), authz.IsAdmin(r)),
	}
}

func navFor(path string, canImport, canReadMessages, canAudit bool) []NavItem {
	items := []NavItem{
		{Label: "Beranda", Href: "/"},
		{Label: "Statistik", Href: "/statistik"},
		{Label: "Tentang", Href: "/about"},
		{Label: "Kontak", Href: "/contact"},
	}
	if canImport {
		items = append(items, NavItem{Label: "Impor Data", Href: "/admin/imports"})
	}
	if canReadMessages {
		items = append(items, NavItem{Label: "Pesan", Href: "/admin/messages"})
	}
	if canAudit {
		items = append(items, NavItem{Label: "Log Audit", Href: "/admin/audit"})
	}
	for i := range items {
		items[i].Active = isActive(path, items[i].Href)
	}
	return items
}

func isActive(path, href string) bool {
	if href == "/" {
		return path == "/"
	}
	return path == href || len(path) > len(href) && path[:len(href)] == href && path[len(href)] == '/'
}
