package filter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

func rec(id string, p model.Platform, t model.StatusType, c model.Category, pr model.Priority, rep model.ReportStatus) model.Record {
	return model.Record{
		BotRecord: model.BotRecord{UUID: id},
		Platform:  p,
		Class:     model.StatusClassification{Type: t, Category: c, Priority: pr},
		Report:    rep,
	}
}

func fixture() []model.Record {
	return []model.Record{
		rec("1", model.PlatformZoom, model.StatusSuccess, model.CategoryNone, model.PriorityNone, ""),
		rec("2", model.PlatformZoom, model.StatusError, model.CategoryAuth, model.PriorityCritical, model.ReportOpen),
		rec("3", model.PlatformTeams, model.StatusError, model.CategoryCapacity, model.PriorityHigh, ""),
		rec("4", model.PlatformGoogleMeet, model.StatusWarning, model.CategoryStalled, model.PriorityMedium, model.ReportClosed),
		rec("5", model.PlatformTeams, model.StatusPending, model.CategoryNone, model.PriorityNone, ""),
	}
}

func ids(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.UUID
	}
	return out
}

func TestSanitize(t *testing.T) {
	got := Sanitize(model.DimensionPlatform, []string{"teams", "bogus", "zoom", "teams"})
	assert.Equal(t, []string{"zoom", "teams"}, got, "canonical order, deduped, unknown dropped")

	assert.Nil(t, Sanitize(model.DimensionPlatform, []string{"bogus"}))
	assert.Nil(t, Sanitize(model.DimensionPlatform, nil))
}

func TestStore_EmptyPassesEverything(t *testing.T) {
	s := NewStore()
	assert.False(t, s.IsActive())
	assert.Len(t, s.Apply(fixture()), 5)
}

func TestStore_OrWithinDimension(t *testing.T) {
	s := NewStore()
	s.Set(model.DimensionPlatform, []string{"zoom", "teams"})

	assert.True(t, s.IsActive())
	assert.Equal(t, []string{"1", "2", "3", "5"}, ids(s.Apply(fixture())))
}

func TestStore_AndAcrossDimensions(t *testing.T) {
	s := NewStore()
	s.Set(model.DimensionPlatform, []string{"zoom", "teams"})
	s.Set(model.DimensionStatusType, []string{"error"})

	assert.Equal(t, []string{"2", "3"}, ids(s.Apply(fixture())))

	s.Set(model.DimensionPriority, []string{"critical"})
	assert.Equal(t, []string{"2"}, ids(s.Apply(fixture())))
}

func TestStore_UserReportNone(t *testing.T) {
	s := NewStore()
	s.Set(model.DimensionUserReport, []string{model.ReportNone})
	assert.Equal(t, []string{"1", "3", "5"}, ids(s.Apply(fixture())))

	s.Set(model.DimensionUserReport, []string{"open", "closed"})
	assert.Equal(t, []string{"2", "4"}, ids(s.Apply(fixture())))
}

func TestStore_SetDropsUnknownValues(t *testing.T) {
	s := NewStore()
	accepted := s.Set(model.DimensionCategory, []string{"auth_error", "made_up"})

	assert.Equal(t, []string{"auth_error"}, accepted)
	assert.Equal(t, []string{"auth_error"}, s.Snapshot().ErrorCategory)
}

func TestStore_SetUnknownDimensionIgnored(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Set(model.Dimension("colour"), []string{"red"}))
	assert.False(t, s.IsActive())
}

func TestStore_ClearAll(t *testing.T) {
	s := NewStore()
	s.Set(model.DimensionPlatform, []string{"zoom"})
	s.Set(model.DimensionPriority, []string{"high"})
	s.ClearAll()

	assert.False(t, s.IsActive())
	assert.Equal(t, model.FilterValues{}, s.Snapshot())
}

func TestStore_HydrateJSONDropsUnknownValues(t *testing.T) {
	s := NewStore()
	ok := s.HydrateJSON([]byte(`{"platform":["zoom","skype","teams"],"errorPriority":["urgent"],"statusType":["error"]}`))
	require.True(t, ok)

	snap := s.Snapshot()
	assert.Equal(t, []string{"zoom", "teams"}, snap.Platforms)
	assert.Nil(t, snap.ErrorPriority)
	assert.Equal(t, []string{"error"}, snap.StatusTypes)
}

func TestStore_HydrateJSONMalformedKeepsState(t *testing.T) {
	s := NewStore()
	s.Set(model.DimensionPlatform, []string{"zoom"})

	assert.False(t, s.HydrateJSON([]byte(`{"platform":`)))
	assert.Equal(t, []string{"zoom"}, s.Snapshot().Platforms)
}

func TestStore_MarshalRoundTrip(t *testing.T) {
	s := NewStore()
	s.Set(model.DimensionPlatform, []string{"teams"})
	s.Set(model.DimensionCategory, []string{"stalled", "auth_error"})

	data, err := s.MarshalJSON()
	require.NoError(t, err)

	other := NewStore()
	require.True(t, other.HydrateJSON(data))
	assert.Equal(t, s.Snapshot(), other.Snapshot())
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Set(model.DimensionPlatform, []string{"zoom"})

	snap := s.Snapshot()
	snap.Platforms[0] = "teams"
	assert.Equal(t, []string{"zoom"}, s.Snapshot().Platforms)
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore()
	var seen []model.FilterValues
	cancel := s.OnChange(func(v model.FilterValues) { seen = append(seen, v) })

	s.Set(model.DimensionPlatform, []string{"zoom"})
	s.ClearAll()
	cancel()
	s.Set(model.DimensionPlatform, []string{"teams"})

	require.Len(t, seen, 2)
	assert.Equal(t, []string{"zoom"}, seen[0].Platforms)
	assert.False(t, IsActive(seen[1]))
}

func TestStore_OnChangeSeesMutationOrder(t *testing.T) {
	s := NewStore()
	var (
		mu   sync.Mutex
		last model.FilterValues
	)
	s.OnChange(func(v model.FilterValues) {
		mu.Lock()
		last = v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.Set(model.DimensionPlatform, []string{"zoom"})
			} else {
				s.Set(model.DimensionPlatform, []string{"teams"})
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, s.Snapshot(), last)
}
