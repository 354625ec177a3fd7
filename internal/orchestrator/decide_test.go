package orchestrator

import "testing"

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		evidenceCount int
		scopeChunks   int
		sufficient    bool
		webEnabled    bool
		want          route
	}{
		{
			name:          "sufficient local evidence answers locally",
			evidenceCount: 3,
			scopeChunks:   10,
			sufficient:    true,
			want:          routeAnswerLocal,
		},
		{
			name:          "sufficient evidence ignores web permission",
			evidenceCount: 3,
			scopeChunks:   10,
			sufficient:    true,
			webEnabled:    true,
			want:          routeAnswerLocal,
		},
		{
			name:          "insufficient with permission searches web",
			evidenceCount: 3,
			scopeChunks:   10,
			webEnabled:    true,
			want:          routeWebSearch,
		},
		{
			name:          "insufficient without permission refuses",
			evidenceCount: 3,
			scopeChunks:   10,
			want:          routeRefuse,
		},
		{
			name:        "no evidence with permission searches web directly",
			scopeChunks: 10,
			webEnabled:  true,
			want:        routeWebSearch,
		},
		{
			name:       "empty scope with permission searches web directly",
			webEnabled: true,
			want:       routeWebSearch,
		},
		{
			name:        "indexed scope yielded nothing and no permission refuses",
			scopeChunks: 10,
			want:        routeRefuse,
		},
		{
			name: "empty scope without permission uses model weights",
			want: routeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := decide(tt.evidenceCount, tt.scopeChunks, tt.sufficient, tt.webEnabled)
			if got != tt.want {
				t.Errorf("decide(%d, %d, %v, %v) = %v, want %v",
					tt.evidenceCount, tt.scopeChunks, tt.sufficient, tt.webEnabled, got, tt.want)
			}
		})
	}
}

func TestRouteString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		r    route
		want string
	}{
		{routeAnswerLocal, "answer-local"},
		{routeWebSearch, "web-search"},
		{routeInternal, "internal"},
		{routeRefuse, "refuse"},
		{route(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("route(%d).String() = %q, want %q", int(tt.r), got, tt.want)
		}
	}
}
