package manifest

import "testing"

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"default prefix", "manifests", "manifests/2024/07/01/arch-20240701-abc.json"},
		{"no prefix", "", "2024/07/01/arch-20240701-abc.json"},
		{"trailing slash trimmed", "manifests/", "manifests/2024/07/01/arch-20240701-abc.json"},
		{"nested prefix", "audit/runs", "audit/runs/2024/07/01/arch-20240701-abc.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := objectKey(tt.prefix, "2024-07-01", "arch-20240701-abc")
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
