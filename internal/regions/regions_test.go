package regions

import (
	"testing"

	"github.com/virga-tools/virga/internal/core"
)

func TestValidForProvider(t *testing.T) {
	cases := []struct {
		provider core.Provider
		region   string
		want     bool
	}{
		{core.ProviderAWS, "us-east-1", true},
		{core.ProviderAWS, "eastus", false},
		{core.ProviderAWS, "", false},
		{core.ProviderAzure, "eastus", true},
		{core.ProviderAzure, "us-east-1", false},
	}
	for _, tc := range cases {
		if got := ValidForProvider(tc.provider, tc.region); got != tc.want {
			t.Errorf("ValidForProvider(%s, %q) = %v, want %v", tc.provider, tc.region, got, tc.want)
		}
	}
}
