package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ignite/campaign-autopilot/internal/api"
	"github.com/ignite/campaign-autopilot/internal/domain"
	"github.com/ignite/campaign-autopilot/internal/sequence"
	"github.com/ignite/campaign-autopilot/internal/service/campaign"
)

// memRepo backs the handlers with an in-memory campaign store.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	events    map[string][]domain.CampaignEvent
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns: make(map[string]*domain.Campaign),
		events:    make(map[string][]domain.CampaignEvent),
	}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) UpdateRecipients(_ context.Context, id string, recipients []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.RecipientEmails = recipients
	return nil
}

func (m *memRepo) Activate(_ context.Context, id string, firstRun time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignPending {
		return campaign.ErrInvalidTransition
	}
	c.Status = domain.CampaignActive
	c.NextRunAt = &firstRun
	return nil
}

func (m *memRepo) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = domain.CampaignCancelled
	c.NextRunAt = nil
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memRepo) DueCampaigns(_ context.Context, _ time.Time, _ int) ([]domain.Campaign, error) {
	return nil, nil
}

func (m *memRepo) AdvanceCursor(_ context.Context, _ string, _ int, _ *sequence.Advancement) error {
	return nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev *domain.CampaignEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.CampaignID] = append(m.events[ev.CampaignID], *ev)
	return nil
}

func (m *memRepo) Events(_ context.Context, campaignID string, limit int) ([]domain.CampaignEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events[campaignID]
	if len(evs) > limit {
		evs = evs[:limit]
	}
	out := make([]domain.CampaignEvent, len(evs))
	copy(out, evs)
	return out, nil
}

type fakeStats struct{}

func (fakeStats) Stats() map[string]int64 { return map[string]int64{"total_dispatched": 7} }

func newTestServer(t *testing.T) (*httptest.Server, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	handlers := api.NewCampaignHandlers(campaign.NewService(repo))
	srv := httptest.NewServer(api.SetupRoutes(handlers, fakeStats{}))
	t.Cleanup(srv.Close)
	return srv, repo
}

func createBody(draft bool) []byte {
	b, _ := json.Marshal(map[string]any{
		"name":             "Spring launch",
		"schedule_type":    "daily",
		"total_months":     2,
		"recipient_emails": []string{"a@example.com"},
		"draft":            draft,
	})
	return b
}

func postJSON(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeCampaign(t *testing.T, resp *http.Response) domain.Campaign {
	t.Helper()
	defer resp.Body.Close()
	var c domain.Campaign
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		t.Fatalf("decode campaign: %v", err)
	}
	return c
}

func TestCreateCampaign(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/campaigns", createBody(false))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	c := decodeCampaign(t, resp)
	if c.Status != domain.CampaignActive {
		t.Errorf("status = %s, want active", c.Status)
	}
	if c.TotalEmails != 60 {
		t.Errorf("total_emails = %d, want 60", c.TotalEmails)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"name":             "Bad",
		"schedule_type":    "weekly",
		"total_months":     1,
		"weekly_days":      []int{1, 9},
		"weekly_emails":    2,
		"recipient_emails": []string{"a@example.com"},
	})
	resp := postJSON(t, srv.URL+"/api/campaigns", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var errResp struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Field != "weekly_days" {
		t.Errorf("field = %q, want weekly_days", errResp.Field)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/campaigns/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListCampaigns(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/campaigns", createBody(false)).Body.Close()
	postJSON(t, srv.URL+"/api/campaigns", createBody(true)).Body.Close()

	resp, err := http.Get(srv.URL + "/api/campaigns?status=pending")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out struct {
		Campaigns []domain.Campaign `json:"campaigns"`
		Total     int               `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if out.Total != 1 || len(out.Campaigns) != 1 {
		t.Fatalf("expected 1 pending campaign, got %d (total %d)", len(out.Campaigns), out.Total)
	}
}

func TestActivateAndCancel(t *testing.T) {
	srv, _ := newTestServer(t)
	created := decodeCampaign(t, postJSON(t, srv.URL+"/api/campaigns", createBody(true)))

	resp := postJSON(t, srv.URL+"/api/campaigns/"+created.ID+"/activate", nil)
	c := decodeCampaign(t, resp)
	if c.Status != domain.CampaignActive {
		t.Fatalf("status after activate = %s", c.Status)
	}

	// Second activation conflicts.
	resp = postJSON(t, srv.URL+"/api/campaigns/"+created.ID+"/activate", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/campaigns/"+created.ID+"/cancel", nil)
	c = decodeCampaign(t, resp)
	if c.Status != domain.CampaignCancelled {
		t.Fatalf("status after cancel = %s", c.Status)
	}
}

func TestUpdateRecipients(t *testing.T) {
	srv, _ := newTestServer(t)
	created := decodeCampaign(t, postJSON(t, srv.URL+"/api/campaigns", createBody(true)))

	body, _ := json.Marshal(api.UpdateRecipientsRequest{RecipientEmails: []string{"new@example.com"}})
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/campaigns/"+created.ID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	c := decodeCampaign(t, resp)
	if len(c.RecipientEmails) != 1 || c.RecipientEmails[0] != "new@example.com" {
		t.Fatalf("recipients = %v", c.RecipientEmails)
	}
}

func TestUpdateRecipientsAfterActivation(t *testing.T) {
	srv, _ := newTestServer(t)
	created := decodeCampaign(t, postJSON(t, srv.URL+"/api/campaigns", createBody(false)))

	body, _ := json.Marshal(api.UpdateRecipientsRequest{RecipientEmails: []string{"new@example.com"}})
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/campaigns/"+created.ID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestDeleteActiveCampaign(t *testing.T) {
	srv, _ := newTestServer(t)
	created := decodeCampaign(t, postJSON(t, srv.URL+"/api/campaigns", createBody(false)))

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/campaigns/"+created.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	created := decodeCampaign(t, postJSON(t, srv.URL+"/api/campaigns", createBody(false)))

	repo.InsertEvent(context.Background(), &domain.CampaignEvent{
		ID: "e-1", CampaignID: created.ID, EmailNumber: 1,
		Kind: domain.EventDispatched, RecipientsOK: 1,
	})

	resp, err := http.Get(srv.URL + "/api/campaigns/" + created.ID + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out struct {
		Events []domain.CampaignEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(out.Events) != 1 || out.Events[0].Kind != domain.EventDispatched {
		t.Fatalf("events = %+v", out.Events)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Status   string           `json:"status"`
		Dispatch map[string]int64 `json:"dispatch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" || out.Dispatch["total_dispatched"] != 7 {
		t.Fatalf("health payload = %+v", out)
	}
}
