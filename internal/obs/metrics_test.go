package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/v1/posts":                   "/v1/posts",
		"/v1/posts/42":                "/v1/posts/:id",
		"/v1/posts/42?published=true": "/v1/posts/:id",
		"/v1/roles/7":                 "/v1/roles/:id",
		"/v1/roles/7/permissions":     "/v1/roles/:id/permissions",
		"/v1/roles/7/permissions/3":   "/v1/roles/:id/permissions/:id",
		"/v1/users/19/roles":          "/v1/users/:id/roles",
		"/v1/auth/login":              "/v1/auth/login",
		"/v1/permissions/12":          "/v1/permissions/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
