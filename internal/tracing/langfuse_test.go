package tracing

import "testing"

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	cases := []struct {
		name, public, secret string
	}{
		{"no keys", "", ""},
		{"public only", "pk-lf-1", ""},
		{"secret only", "", "sk-lf-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("LANGFUSE_PUBLIC_KEY", tc.public)
			t.Setenv("LANGFUSE_SECRET_KEY", tc.secret)

			handler, flush, ok := Setup("serve", "dev")
			if ok || handler != nil || flush != nil {
				t.Errorf("Setup() = %v, %v, %v; want disabled", handler, flush != nil, ok)
			}
		})
	}
}

func TestEnable_DisabledFlushIsSafe(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	flush, ok := Enable("ask", "dev")
	if ok {
		t.Fatal("Enable reported tracing on without keys")
	}
	flush()
}
