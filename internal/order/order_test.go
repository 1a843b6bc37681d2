package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func strPtr(s string) *string { return &s }

func sampleDraft() *Draft {
	return &Draft{
		Budget:              strPtr("50"),
		DietaryRestrictions: []string{"vegan"},
		Orders: []Group{
			{Platform: "instacart", Items: []Item{{Name: "oat milk", Quantity: "2", Details: "unsweetened"}}},
			{Platform: "ubereats", Items: []Item{{Name: "tofu bowl", Quantity: "1"}}},
		},
	}
}

func TestParseDraft(t *testing.T) {
	raw := "Here is the order:\n```json\n" + `{
  "budget": "40",
  "dietary_restrictions": ["gluten-free"],
  "orders": [{"platform": "doordash", "items": [{"name": "salad", "quantity": "1", "details": "no croutons"}]}]
}` + "\n```"

	d, err := ParseDraft(raw)
	require.NoError(t, err)
	assert.Equal(t, "40", d.BudgetString())
	assert.Equal(t, []string{"gluten-free"}, d.DietaryRestrictions)
	require.Len(t, d.Orders, 1)
	assert.Equal(t, "salad", d.Orders[0].Items[0].Name)
}

func TestParseDraftNullBudget(t *testing.T) {
	d, err := ParseDraft(`{"budget": null, "dietary_restrictions": [], "orders": [{"platform": "instacart", "items": [{"name": "eggs"}]}]}`)
	require.NoError(t, err)
	assert.Nil(t, d.Budget)
	assert.Equal(t, "", d.BudgetString())
}

func TestParseDraftInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", "sorry, I can't help"},
		{"no orders", `{"orders": []}`},
		{"no platform", `{"orders": [{"platform": "", "items": [{"name": "x"}]}]}`},
		{"no items", `{"orders": [{"platform": "instacart", "items": []}]}`},
		{"unnamed item", `{"orders": [{"platform": "instacart", "items": [{"name": " "}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDraft(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestDraftClone(t *testing.T) {
	d := sampleDraft()
	c := d.Clone()

	c.Orders[0].Items[0].Name = "changed"
	*c.Budget = "99"
	c.DietaryRestrictions[0] = "none"

	assert.Equal(t, "oat milk", d.Orders[0].Items[0].Name)
	assert.Equal(t, "50", *d.Budget)
	assert.Equal(t, "vegan", d.DietaryRestrictions[0])
	assert.Nil(t, (*Draft)(nil).Clone())
}

func TestPlatformFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"instacart", SiteInstacart},
		{"Uber Eats", SiteUberEats},
		{"ubereats", SiteUberEats},
		{"DoorDash", SiteDoorDash},
		{"grubhub", SiteInstacart},
		{"", SiteInstacart},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PlatformFor(tt.in).Key)
		})
	}
}

func TestTaskDescription(t *testing.T) {
	g := Group{Platform: "doordash", Items: []Item{{Name: "pad thai", Quantity: "2", Details: "tofu"}}}

	desc := TaskDescription(g, "30", []string{"peanut allergy"})
	assert.Contains(t, desc, "- pad thai (quantity: 2) - tofu")
	assert.Contains(t, desc, "Dietary restrictions to consider: peanut allergy")
	assert.Contains(t, desc, "Budget limit: $30")
	assert.Contains(t, desc, "SAFETY REQUIREMENTS")
	assert.Contains(t, desc, "STORE HOURS")
	assert.Contains(t, desc, Sites[SiteDoorDash].URL)

	plain := TaskDescription(g, "", nil)
	assert.NotContains(t, plain, "Budget limit")
	assert.NotContains(t, plain, "Dietary restrictions")
}

func TestNewTask(t *testing.T) {
	g := Group{Platform: "Uber Eats", Items: []Item{{Name: "burrito"}}}
	task := NewTask(g, "$20", nil)
	assert.Equal(t, SiteUberEats, task.Site)
	assert.Equal(t, Sites[SiteUberEats].URL, task.SiteURL)
	assert.Contains(t, task.Description, "Budget limit: $20")
	assert.NotContains(t, task.Description, "$$20")
	assert.Len(t, task.Items, 1)
}

func TestHTTPExecutor(t *testing.T) {
	var got Task
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer exec-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(PlatformResult{
			Success: true,
			Items:   []CartItem{{Name: "Oat Milk", Price: 4.5, URL: "https://example.com/oat"}},
		})
	}))
	defer srv.Close()

	exec := NewHTTPExecutor(config.ExecutorConfig{BaseURL: srv.URL + "/", APIKey: "exec-key", TimeoutSeconds: 5})
	res, err := exec.Execute(context.Background(), NewTask(sampleDraft().Orders[0], "50", nil))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, SiteInstacart, got.Site)
	require.Len(t, res.Items, 1)
	assert.InDelta(t, 4.5, res.Items[0].Price, 1e-9)
}

func TestHTTPExecutorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "browser crashed", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPExecutor(config.ExecutorConfig{BaseURL: srv.URL}).Execute(context.Background(), Task{})
	var execErr *ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, http.StatusBadGateway, execErr.StatusCode)
	assert.Equal(t, "browser crashed", execErr.Message)

	_, err = NewHTTPExecutor(config.ExecutorConfig{}).Execute(context.Background(), Task{})
	assert.ErrorIs(t, err, ErrNoExecutor)
}

// fakeExecutor returns a canned result per site.
type fakeExecutor struct {
	mu      sync.Mutex
	results map[string]*PlatformResult
	errs    map[string]error
	tasks   []Task
}

func (f *fakeExecutor) Execute(_ context.Context, task Task) (*PlatformResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	if err := f.errs[task.Site]; err != nil {
		return nil, err
	}
	if res, ok := f.results[task.Site]; ok {
		return res, nil
	}
	return &PlatformResult{Success: false}, nil
}

func TestRunnerAllSucceed(t *testing.T) {
	exec := &fakeExecutor{results: map[string]*PlatformResult{
		SiteInstacart: {Success: true, Items: []CartItem{{Name: "oat milk", Price: 3}, {Name: "oat milk", Price: 3}}},
		SiteUberEats:  {Success: true, Items: []CartItem{{Name: "tofu bowl", Price: 12.5}}, TotalItems: 1, TotalPrice: 14},
	}}

	sum, err := NewRunner(exec, testLogger()).Process(context.Background(), sampleDraft())
	require.NoError(t, err)
	assert.True(t, sum.Success)
	assert.Equal(t, 2, sum.TotalOrders)
	assert.Equal(t, 2, sum.SuccessfulOrders)
	assert.Equal(t, 0, sum.FailedOrders)
	assert.Equal(t, "50", *sum.Budget)

	assert.Equal(t, "instacart", sum.Orders[0].Platform)
	assert.Equal(t, 2, sum.Orders[0].TotalItems)
	assert.InDelta(t, 6.0, sum.Orders[0].TotalPrice, 1e-9)
	assert.InDelta(t, 14.0, sum.Orders[1].TotalPrice, 1e-9)
	assert.Len(t, exec.tasks, 2)
}

func TestRunnerPartialFailure(t *testing.T) {
	exec := &fakeExecutor{
		results: map[string]*PlatformResult{SiteInstacart: {Success: true}},
		errs:    map[string]error{SiteUberEats: errors.New("timeout")},
	}

	sum, err := NewRunner(exec, testLogger()).Process(context.Background(), sampleDraft())
	require.NoError(t, err)
	assert.True(t, sum.Success)
	assert.Equal(t, 1, sum.SuccessfulOrders)
	assert.Equal(t, 1, sum.FailedOrders)
	assert.Equal(t, "timeout", sum.Orders[1].Error)
	assert.NotNil(t, sum.Orders[1].Items)
}

func TestRunnerAllFail(t *testing.T) {
	exec := &fakeExecutor{results: map[string]*PlatformResult{
		SiteUberEats: {Success: false, Error: "store closed"},
	}}

	sum, err := NewRunner(exec, testLogger()).Process(context.Background(), sampleDraft())
	require.NoError(t, err)
	assert.False(t, sum.Success)
	assert.Equal(t, 2, sum.FailedOrders)
	assert.Equal(t, failedToFill, sum.Orders[0].Error)
	assert.Equal(t, "store closed", sum.Orders[1].Error)
}

func TestRunnerCancelled(t *testing.T) {
	exec := &fakeExecutor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := NewRunner(exec, testLogger()).Process(ctx, sampleDraft())
	require.NoError(t, err)
	assert.False(t, sum.Success)
	assert.Equal(t, 2, sum.FailedOrders)
	assert.Empty(t, exec.tasks)
}

func TestRunnerRejectsEmptyDraft(t *testing.T) {
	_, err := NewRunner(&fakeExecutor{}, testLogger()).Process(context.Background(), &Draft{})
	assert.ErrorIs(t, err, ErrEmptyDraft)
}

func TestFromConfirmation(t *testing.T) {
	conf := &domain.OrderConfirmation{
		Restaurant:       domain.ConfirmationRestaurant{Name: "Green Bowl", Address: "1 Main St"},
		Items:            []domain.ConfirmationItem{{Item: "Buddha Bowl", Price: 14, Notes: "no sesame"}, {Item: "Kombucha", Price: 9.5}},
		TotalPrice:       23.5,
		DeliveryPlatform: domain.PlatformDoorDash,
	}

	d, err := FromConfirmation(conf, domain.Preferences{Dietary: "vegan"})
	require.NoError(t, err)
	require.Len(t, d.Orders, 1)
	assert.Equal(t, domain.PlatformDoorDash, d.Orders[0].Platform)
	assert.Equal(t, "23.50", d.BudgetString())
	assert.Equal(t, []string{"vegan"}, d.DietaryRestrictions)

	first := d.Orders[0].Items[0]
	assert.Equal(t, "Buddha Bowl", first.Name)
	assert.Equal(t, "1", first.Quantity)
	assert.Contains(t, first.Details, "Green Bowl")
	assert.Contains(t, first.Details, "$14.00")
	assert.Contains(t, first.Details, "no sesame")

	d, err = FromConfirmation(conf, domain.Preferences{Budget: "30"})
	require.NoError(t, err)
	assert.Equal(t, "30", d.BudgetString())
	assert.Empty(t, d.DietaryRestrictions)

	_, err = FromConfirmation(nil, domain.Preferences{})
	assert.Error(t, err)
}

// memRecorder keeps order records in memory.
type memRecorder struct {
	mu      sync.Mutex
	records map[string]*domain.OrderRecord
	history []domain.OrderStatus
}

func newMemRecorder() *memRecorder {
	return &memRecorder{records: map[string]*domain.OrderRecord{}}
}

func (m *memRecorder) Create(_ context.Context, rec domain.OrderRecord) (*domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = "order-1"
	rec.Status = domain.OrderPending
	m.records[rec.ID] = &rec
	out := rec
	return &out, nil
}

func (m *memRecorder) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, summary, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return errors.New("not found")
	}
	rec.Status = status
	if summary != "" {
		rec.Summary = summary
	}
	rec.Error = errText
	m.history = append(m.history, status)
	return nil
}

func TestServiceRun(t *testing.T) {
	rec := newMemRecorder()
	exec := &fakeExecutor{results: map[string]*PlatformResult{
		SiteInstacart: {Success: true},
		SiteUberEats:  {Success: true},
	}}
	svc := NewService(NewRunner(exec, testLogger()), rec, testLogger())

	id, sum, err := svc.Run(context.Background(), "sess-1", sampleDraft())
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)
	assert.True(t, sum.Success)

	stored := rec.records[id]
	assert.Equal(t, "sess-1", stored.SessionID)
	assert.Equal(t, domain.OrderSucceeded, stored.Status)
	assert.Contains(t, stored.Draft, "oat milk")
	assert.Contains(t, stored.Summary, `"successful_orders":2`)
	assert.Equal(t, []domain.OrderStatus{domain.OrderRunning, domain.OrderSucceeded}, rec.history)
}

func TestServiceStartNotifies(t *testing.T) {
	rec := newMemRecorder()
	svc := NewService(NewRunner(&fakeExecutor{}, testLogger()), rec, testLogger())

	var mu sync.Mutex
	var updates []Update
	id, err := svc.Start(context.Background(), "sess-2", sampleDraft(), func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})
	require.NoError(t, err)
	svc.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 2)
	assert.Equal(t, domain.OrderRunning, updates[0].Status)
	assert.Equal(t, domain.OrderFailed, updates[1].Status)
	assert.Equal(t, id, updates[1].OrderID)
	require.NotNil(t, updates[1].Summary)
	assert.Equal(t, 2, updates[1].Summary.FailedOrders)
}

func TestServiceWithoutRecorder(t *testing.T) {
	svc := NewService(NewRunner(&fakeExecutor{}, testLogger()), nil, testLogger())

	id, _, err := svc.Run(context.Background(), "", sampleDraft())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, _, err = svc.Run(context.Background(), "", &Draft{})
	assert.ErrorIs(t, err, ErrEmptyDraft)
}
