package model

import "testing"

func TestResolveDisplayImage(t *testing.T) {
	tests := []struct {
		name   string
		recipe Recipe
		want   string // "" means nil
	}{
		{
			name:   "own image wins",
			recipe: Recipe{Image: "cover.jpg", Steps: []Step{{Order: 0, Image: "s0.jpg"}}},
			want:   "cover.jpg",
		},
		{
			name: "falls back to highest-ordered step with an image",
			recipe: Recipe{Steps: []Step{
				{Order: 0, Image: "s0.jpg"},
				{Order: 1, Image: "s1.jpg"},
				{Order: 2},
			}},
			want: "s1.jpg",
		},
		{
			name:   "uses LastStepImage when steps are not loaded",
			recipe: Recipe{LastStepImage: "last.jpg"},
			want:   "last.jpg",
		},
		{
			name:   "nil when nothing has an image",
			recipe: Recipe{Steps: []Step{{Order: 0}, {Order: 1}}},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.recipe.ResolveDisplayImage()
			if tt.want == "" {
				if got != nil {
					t.Errorf("ResolveDisplayImage() = %q, want nil", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("ResolveDisplayImage() = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestIsOwnedBy(t *testing.T) {
	r := Recipe{AuthorID: "u1"}
	if !r.IsOwnedBy("u1") {
		t.Error("IsOwnedBy(author) = false, want true")
	}
	if r.IsOwnedBy("u2") {
		t.Error("IsOwnedBy(other) = true, want false")
	}
	if (&Recipe{}).IsOwnedBy("") {
		t.Error("empty user id must never own a recipe")
	}
}

func TestIdentityIsAdmin(t *testing.T) {
	var anon *Identity
	if anon.IsAdmin() {
		t.Error("nil identity reported as admin")
	}
	if !(&Identity{Role: RoleAdmin}).IsAdmin() {
		t.Error("ADMIN identity not reported as admin")
	}
	if (&Identity{Role: RoleUser}).IsAdmin() {
		t.Error("USER identity reported as admin")
	}
}
