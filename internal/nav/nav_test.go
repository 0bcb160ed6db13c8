package nav

import "testing"

var menu = Menu{
	{Path: "/", LabelKey: "nav_home"},
	{Path: "/guide", LabelKey: "nav_guide"},
	{Path: "/changelog", LabelKey: "nav_changelog"},
}

func TestBuildMarksActive(t *testing.T) {
	items := menu.Build("/guide")
	if items[0].Active || !items[1].Active || items[2].Active {
		t.Fatalf("unexpected active flags %+v", items)
	}
	if !menu.Build("")[0].Active {
		t.Fatalf("empty path should activate home")
	}
	if menu.Build("/guidebook")[1].Active {
		t.Fatalf("prefix without boundary must not match")
	}
}

func TestBreadcrumbs(t *testing.T) {
	got := menu.Breadcrumbs("/changelog")
	if len(got) != 2 || got[1].LabelKey != "nav_changelog" || !got[1].Active || got[0].Active {
		t.Fatalf("unexpected crumbs %+v", got)
	}
	deep := menu.Breadcrumbs("/domestic-equity/new_items")
	if len(deep) != 3 || deep[1].LabelKey != "" || deep[1].Label != "Domestic equity" || deep[2].Label != "New items" {
		t.Fatalf("unexpected deep crumbs %+v", deep)
	}
	if home := menu.Breadcrumbs("/"); len(home) != 1 || home[0].LabelKey != HomeKey {
		t.Fatalf("unexpected home crumbs %+v", home)
	}
}
