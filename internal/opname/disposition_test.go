package opname

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingItem(imei string) SnapshotItem {
	return SnapshotItem{ID: uuid.New(), UnitID: "u-" + imei, IMEI: imei, ProductLabel: "Galaxy S23", ScanResult: SnapshotMissing}
}

func unregisteredItem(imei string) ScannedItem {
	return ScannedItem{ID: uuid.New(), IMEI: imei, ScanResult: ScannedUnregistered}
}

func TestResolveSnapshot_Mapping(t *testing.T) {
	tests := []struct {
		action  SnapshotAction
		ref     string
		want    MutationKind
		channel string
	}{
		{ActionSoldTokopedia, "INV/1", MutationMarkSold, "tokopedia"},
		{ActionSoldShopee, "SHP-2", MutationMarkSold, "shopee"},
		{ActionService, "", MutationMarkInService, ""},
		{ActionLost, "", MutationWriteOff, ""},
		{ActionAvailable, "", MutationNone, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			item := missingItem("B")
			m, err := ResolveSnapshot(item, tt.action, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Kind)
			assert.Equal(t, tt.channel, m.Channel)
			assert.Equal(t, tt.ref, m.SoldReferenceID)
			assert.Equal(t, item.ID, m.ItemID)
			assert.Equal(t, item.UnitID, m.UnitID)
			assert.Equal(t, SideSnapshot, m.Side)
			assert.Equal(t, tt.want != MutationNone, m.Required())
		})
	}
}

func TestResolveSnapshot_SoldNeedsReference(t *testing.T) {
	_, err := ResolveSnapshot(missingItem("B"), ActionSoldShopee, "  ")
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidInput, ve.Kind)
}

func TestResolveScanned_Mapping(t *testing.T) {
	tests := map[ScannedAction]MutationKind{
		ActionAddToStock: MutationCreateUnit,
		ActionMarkReturn: MutationFlagReturn,
		ActionIgnore:     MutationNone,
	}
	for action, want := range tests {
		m, err := ResolveScanned(unregisteredItem("D"), action)
		require.NoError(t, err)
		assert.Equal(t, want, m.Kind, action)
		assert.Equal(t, SideScanned, m.Side)
	}
}

func TestResolve_ActionNotPermitted(t *testing.T) {
	matched := missingItem("A")
	matched.ScanResult = SnapshotMatch
	matchedScan := unregisteredItem("A")
	matchedScan.ScanResult = ScannedMatch

	tests := []struct {
		name   string
		item   Classified
		action string
	}{
		{"scanned action on matched snapshot", matched, string(ActionAddToStock)},
		{"snapshot action on matched snapshot", &matched, string(ActionLost)},
		{"scanned action on missing snapshot", missingItem("B"), string(ActionIgnore)},
		{"snapshot action on unregistered scan", unregisteredItem("D"), string(ActionLost)},
		{"any action on matched scan", &matchedScan, string(ActionIgnore)},
		{"unknown action", missingItem("C"), "stolen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.item, tt.action, "ref")
			ve, ok := AsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, KindActionNotPermitted, ve.Kind)
		})
	}
}

func TestResolveItem_NotPermittedLeavesItemUntouched(t *testing.T) {
	s := newDraft(t, "A")
	scan(t, s, "A")
	before := s.Clone()

	_, err := s.ResolveItem(snapID(t, s, "A"), string(ActionAddToStock), "", "")
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, KindActionNotPermitted, ve.Kind)
	assert.Equal(t, before, s.Clone())
}

func TestResolveItem_SwitchingAwayFromSoldClearsReference(t *testing.T) {
	s := newDraft(t, "A")
	id := snapID(t, s, "A")
	_, err := s.ResolveItem(id, string(ActionSoldTokopedia), "", "INV/7")
	require.NoError(t, err)
	_, err = s.ResolveItem(id, string(ActionLost), "", "")
	require.NoError(t, err)

	it, _ := s.SnapshotItemByIMEI("A")
	assert.Nil(t, it.SoldReferenceID)
	assert.Equal(t, ActionLost, *it.ActionTaken)
}
