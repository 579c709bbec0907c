package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"iochunt/core"
	"iochunt/threat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchPage struct {
	Items []*core.Match `json:"items"`
	Total int64         `json:"total"`
}

type huntPage struct {
	Items []*core.HuntJob `json:"items"`
	Total int64           `json:"total"`
}

func (h *apiHarness) createHunt(t *testing.T, req threat.CreateHuntRequest) *core.HuntJob {
	t.Helper()
	rr := h.do(t, "POST", orgPath("/hunts"), req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[*core.HuntJob](t, rr)
}

func TestHunt_HashOnTwoEndpoints(t *testing.T) {
	h := newTestAPI(t)
	h.seedEndpoints(t)
	ind := h.createIndicator(t, CreateIndicatorRequest{Value: testSHA256})

	job := h.createHunt(t, threat.CreateHuntRequest{Name: "invoice sweep", IndicatorIDs: []string{ind.ID}, CreatedBy: "analyst"})
	assert.Equal(t, core.HuntStatusPending, job.Status)
	assert.Equal(t, core.HuntKindIOC, job.HuntKind)

	rr := h.do(t, "POST", orgPath("/hunts/"+job.ID+"/execute?wait=true"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[ExecuteHuntResponse](t, rr)
	assert.Equal(t, core.HuntStatusCompleted, resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 2, resp.Result.TotalMatches)
	assert.Equal(t, 2, resp.Result.TotalEndpoints)

	rr = h.do(t, "GET", orgPath("/hunts/"+job.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stored := decode[*core.HuntJob](t, rr)
	assert.Equal(t, core.HuntStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.MatchesFound)
	assert.Equal(t, 2, stored.TotalEndpoints)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)

	rr = h.do(t, "GET", orgPath("/hunts/"+job.ID+"/matches"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	matches := decode[matchPage](t, rr)
	require.Len(t, matches.Items, 2)
	for _, m := range matches.Items {
		assert.Equal(t, core.MatchSourceInventory, m.Source)
		assert.Equal(t, ind.ID, m.IndicatorID)
		assert.Equal(t, testSHA256, m.Context["sha256"])
	}

	rr = h.do(t, "GET", orgPath("/hunts/"+job.ID+"/matches?endpoint_id=ep-B"), nil)
	assert.Equal(t, int64(1), decode[matchPage](t, rr).Total)

	rr = h.do(t, "POST", orgPath("/hunts/"+job.ID+"/execute?wait=true"), nil)
	assert.Equal(t, http.StatusConflict, rr.Code, "finished hunts cannot be rerun")
}

func TestHunt_DefaultsToActiveIndicators(t *testing.T) {
	h := newTestAPI(t)
	h.seedEndpoints(t)
	inactive := false
	h.createIndicator(t, CreateIndicatorRequest{Value: testSHA256})
	h.createIndicator(t, CreateIndicatorRequest{Value: "powershell.exe", IsActive: &inactive})

	job := h.createHunt(t, threat.CreateHuntRequest{Name: "all active"})
	assert.Len(t, job.IndicatorIDs, 1)

	rr := h.do(t, "POST", "/api/v1/orgs/empty-org/hunts", threat.CreateHuntRequest{Name: "nothing"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, "POST", orgPath("/hunts"), threat.CreateHuntRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "name is required")
}

func TestHunt_ExecuteAsync(t *testing.T) {
	h := newTestAPI(t)
	h.seedEndpoints(t)
	ind := h.createIndicator(t, CreateIndicatorRequest{Value: "powershell.exe"})
	job := h.createHunt(t, threat.CreateHuntRequest{Name: "powershell", IndicatorIDs: []string{ind.ID}})

	rr := h.do(t, "POST", orgPath("/hunts/"+job.ID+"/execute"), nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Equal(t, job.ID, decode[ExecuteHuntResponse](t, rr).HuntID)

	require.Eventually(t, func() bool {
		stored, err := h.jobs.GetHuntJob(context.Background(), testOrg, job.ID)
		return err == nil && stored.Status == core.HuntStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := h.jobs.GetHuntJob(context.Background(), testOrg, job.ID)
	require.NoError(t, err)
	// powershell.exe is a file name: inventory path on ep-A plus the log line on ep-B
	assert.Equal(t, 2, stored.MatchesFound)
	assert.Equal(t, 2, stored.TotalEndpoints)

	// The job leaves the active set just after its terminal state is written
	require.Eventually(t, func() bool {
		rr := h.do(t, "GET", orgPath("/hunts/active"), nil)
		return rr.Code == http.StatusOK && len(decode[ActiveHuntsResponse](t, rr).HuntIDs) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHunt_ExecuteErrors(t *testing.T) {
	h := newTestAPI(t)
	ind := h.createIndicator(t, CreateIndicatorRequest{Value: "evil.dll"})
	job := h.createHunt(t, threat.CreateHuntRequest{Name: "n", IndicatorIDs: []string{ind.ID}})

	rr := h.do(t, "POST", orgPath("/hunts/missing/execute"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, "POST", orgPath("/hunts/missing/execute?wait=true"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, "POST", orgPath("/hunts/"+job.ID+"/execute?wait=maybe"), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, "POST", orgPath("/hunts/"+job.ID+"/execute"), ExecuteHuntRequest{IndicatorIDs: []string{ind.ID}})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "override requires a synchronous run")

	rr = h.do(t, "POST", orgPath("/hunts/"+job.ID+"/execute?wait=true"), `{"bogus": 1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHunt_ExecuteWithOverride(t *testing.T) {
	h := newTestAPI(t)
	h.seedEndpoints(t)
	stored := h.createIndicator(t, CreateIndicatorRequest{Value: "nothing-here.exe"})
	override := h.createIndicator(t, CreateIndicatorRequest{Value: testSHA256})
	job := h.createHunt(t, threat.CreateHuntRequest{Name: "n", IndicatorIDs: []string{stored.ID}})

	rr := h.do(t, "POST", orgPath("/hunts/"+job.ID+"/execute?wait=true"), ExecuteHuntRequest{IndicatorIDs: []string{override.ID}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 2, decode[ExecuteHuntResponse](t, rr).Result.TotalMatches)
}

func TestHunt_ListAndDelete(t *testing.T) {
	h := newTestAPI(t)
	h.seedEndpoints(t)
	ind := h.createIndicator(t, CreateIndicatorRequest{Value: testSHA256})
	first := h.createHunt(t, threat.CreateHuntRequest{Name: "first", IndicatorIDs: []string{ind.ID}})
	h.createHunt(t, threat.CreateHuntRequest{Name: "second", IndicatorIDs: []string{ind.ID}})

	rr := h.do(t, "GET", orgPath("/hunts"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(2), decode[huntPage](t, rr).Total)

	rr = h.do(t, "POST", orgPath("/hunts/"+first.ID+"/execute?wait=true"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = h.do(t, "GET", orgPath("/hunts/"+first.ID+"/matches"), nil)
	matches := decode[matchPage](t, rr)
	require.NotEmpty(t, matches.Items)

	rr = h.do(t, "DELETE", orgPath("/hunts/"+first.ID), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = h.do(t, "GET", orgPath("/matches/"+matches.Items[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "matches are deleted with their hunt")
	rr = h.do(t, "GET", orgPath("/hunts/"+first.ID+"/matches"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, "DELETE", orgPath("/hunts/"+first.ID), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHunt_DeleteRunningIsConflict(t *testing.T) {
	h := newTestAPI(t)
	ind := h.createIndicator(t, CreateIndicatorRequest{Value: testSHA256})
	job := h.createHunt(t, threat.CreateHuntRequest{Name: "n", IndicatorIDs: []string{ind.ID}})

	// Drive the stored job to running without an executor
	require.NoError(t, job.Start(time.Now().UTC()))
	require.NoError(t, h.jobs.UpdateHuntStatus(context.Background(), job, core.HuntStatusPending))

	rr := h.do(t, "DELETE", orgPath("/hunts/"+job.ID), nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHuntMatches_Filters(t *testing.T) {
	h := newTestAPI(t)
	job := h.createHunt(t, threat.CreateHuntRequest{Name: "n", IndicatorIDs: []string{"ind-1"}})

	for _, q := range []string{"?source=edr", "?reviewed=perhaps"} {
		rr := h.do(t, "GET", orgPath("/hunts/"+job.ID+"/matches"+q), nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}

	rr := h.do(t, "GET", orgPath("/hunts/"+job.ID+"/matches?reviewed=false"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[matchPage](t, rr)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}
