package opname

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshot_DuplicateExpectedIdentifier(t *testing.T) {
	_, err := BuildSnapshot(uuid.New(), units("A", "B", "A", "C", "B"))
	require.Error(t, err)

	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, KindDuplicateExpectedIdentifier, ve.Kind)
	assert.Equal(t, []string{"A", "B"}, ve.ItemIDs)
}

func TestBuildSnapshot_TrimsAndKeepsOrder(t *testing.T) {
	in := units(" A ", "B")
	items, err := BuildSnapshot(uuid.New(), in)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "A", items[0].IMEI)
	assert.Equal(t, 0, items[0].Position)
	assert.Equal(t, 1, items[1].Position)
	assert.True(t, in[1].SellingPrice.Equal(items[1].SellingPrice))
	assert.Equal(t, "unit- A ", items[0].UnitID)
}

func TestBuildSnapshot_EmptyIdentifier(t *testing.T) {
	_, err := BuildSnapshot(uuid.New(), []ExpectedUnit{{UnitID: "u1", IMEI: "  "}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDuplicateExpected_NoSessionCreated(t *testing.T) {
	s, err := NewSession(uuid.New(), SessionTypeClosing, "user-1", units("A", "A"), t0)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		expected []string
		scans    []string
		want     Classification
	}{
		{
			name:     "mixed",
			expected: []string{"A", "B", "C"},
			scans:    []string{"A", "D"},
			want:     Classification{Match: []string{"A"}, Missing: []string{"B", "C"}, Unregistered: []string{"D"}},
		},
		{
			name:     "repeats count once",
			expected: []string{"A"},
			scans:    []string{"A", "A", "Z", "Z"},
			want:     Classification{Match: []string{"A"}, Unregistered: []string{"Z"}},
		},
		{
			name:     "nothing expected",
			scans:    []string{"1", "2"},
			want:     Classification{Unregistered: []string{"1", "2"}},
		},
		{
			name:     "nothing scanned",
			expected: []string{"1", "2"},
			want:     Classification{Missing: []string{"1", "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.expected, tt.scans)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_DuplicateExpected(t *testing.T) {
	_, err := Classify([]string{"A", "A"}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestComputeCounters_DoesNotTouchItems(t *testing.T) {
	s := newDraft(t, "A", "B")
	scan(t, s, "A")
	scan(t, s, "X")
	before := s.Clone()

	c := ComputeCounters(s.SnapshotItems, s.ScannedItems)
	assert.Equal(t, Counters{TotalExpected: 2, TotalScanned: 2, TotalMatch: 1, TotalMissing: 1, TotalUnregistered: 1}, c)
	assert.Equal(t, before, s.Clone())
}

func TestComputeCounters_Identity(t *testing.T) {
	s := newDraft(t, "A", "B", "C", "D")
	for _, id := range []string{"B", "Q", "D", "R", "B"} {
		scan(t, s, id)
	}
	c := s.Counters()
	assert.Equal(t, c.TotalExpected, c.TotalMatch+c.TotalMissing)
	assert.Equal(t, c.TotalScanned, c.TotalMatch+c.TotalUnregistered)
}
