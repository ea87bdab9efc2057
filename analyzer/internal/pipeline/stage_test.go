package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecnpath/ecnpath/analyzer/internal/classify"
	"github.com/ecnpath/ecnpath/analyzer/internal/obs"
)

func TestLookup(t *testing.T) {
	for _, s := range Stages {
		got, err := Lookup(s.Name)
		require.NoError(t, err)
		assert.Equal(t, s.Marker, got.Marker)
	}

	_, err := Lookup("tcp")
	assert.Error(t, err)
}

func TestStages_Chain(t *testing.T) {
	// each stage consumes what the previous one marks and emits
	assert.Equal(t, Super.Marker, PathDep.Requires)
	assert.Equal(t, Super.Outputs, PathDep.Relevant)

	// stable output is optional super input
	assert.Equal(t, Stable.Requires, Super.Requires)
	for _, c := range []string{classify.StableWorks, classify.StableBroken, classify.StableTransient, classify.StableOffline} {
		assert.Contains(t, Stable.Outputs, c)
		assert.Contains(t, Super.Relevant, c)
	}
}

func TestStableKeyRoundTrip(t *testing.T) {
	o := obs.Observation{Path: []string{"ams3", "*", "2001:db8::1"}}
	key, ok := Stable.Key(o)
	require.True(t, ok)
	assert.Equal(t, o.Path, Stable.Path(key))

	_, ok = Stable.Key(obs.Observation{})
	assert.False(t, ok)
}

func TestInterested(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		conds []string
		md    obs.Metadata
		want  bool
	}{
		{"super on raw set", Super, []string{classify.ConnWorks}, obs.Metadata{MarkerECN: "yes"}, true},
		{"super, one relevant among many", Super, []string{"ecn.negotiation.succeeded", classify.ConnOffline}, obs.Metadata{MarkerECN: "yes"}, true},
		{"super, marker missing", Super, []string{classify.ConnWorks}, obs.Metadata{}, false},
		{"super, nil metadata", Super, []string{classify.ConnWorks}, nil, false},
		{"super, nothing relevant", Super, []string{"ecn.negotiation.succeeded"}, obs.Metadata{MarkerECN: "yes"}, false},
		{"super, no conditions", Super, nil, obs.Metadata{MarkerECN: "yes"}, false},
		{"stable on raw set", Stable, []string{"ecn.negotiation.failed"}, obs.Metadata{MarkerECN: "yes"}, true},
		{"stable on old negotiation spelling", Stable, []string{classify.NotNegotiated}, obs.Metadata{MarkerECN: "yes"}, true},
		{"stable, marker missing", Stable, []string{classify.ConnWorks}, obs.Metadata{MarkerSuper: "yes"}, false},
		{"stable on its own output", Stable, []string{classify.StableWorks}, obs.Metadata{MarkerECN: "yes", MarkerStable: "yes"}, false},
		{"super on stable set", Super, []string{classify.StableBroken, classify.StableUnstable}, obs.Metadata{MarkerECN: "yes", MarkerStable: "yes"}, true},
		{"super on unstable-only stable set", Super, []string{classify.StableUnstable}, obs.Metadata{MarkerECN: "yes", MarkerStable: "yes"}, false},
		{"pathdep on super set", PathDep, []string{classify.SuperBroken}, obs.Metadata{MarkerSuper: "yes"}, true},
		{"pathdep on raw set", PathDep, []string{classify.ConnBroken}, obs.Metadata{MarkerECN: "yes"}, false},
		{"pathdep, super conditions without marker", PathDep, []string{classify.SuperWorks}, obs.Metadata{MarkerECN: "yes"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.stage.Interested(tc.conds, tc.md); got != tc.want {
				t.Errorf("Interested(%v, %v) = %v, want %v", tc.conds, tc.md, got, tc.want)
			}
		})
	}
}

func TestInterested_DoesNotMutateMetadata(t *testing.T) {
	md := obs.Metadata{MarkerECN: "yes", obs.KeyConditions: []string{classify.ConnWorks}}
	Super.Interested(md.Conditions(), md)
	assert.Len(t, md, 2)
}
