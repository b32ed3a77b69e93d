package notifier_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lesgoski/dealengine/model"
	"github.com/lesgoski/dealengine/notifier"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	unnotified []model.Deal
	all        []model.Deal
	flights    map[string]model.Flight
	notified   map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{flights: make(map[string]model.Flight), notified: make(map[string]bool)}
}

func (s *fakeStore) UnnotifiedDealsForProfile(ctx context.Context, profileID string) ([]model.Deal, error) {
	return s.unnotified, nil
}

func (s *fakeStore) DealsForProfile(ctx context.Context, profileID string) ([]model.Deal, error) {
	return s.all, nil
}

func (s *fakeStore) MarkNotified(ctx context.Context, dealID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified[dealID] = true
	return nil
}

func (s *fakeStore) FlightByID(ctx context.Context, id string) (model.Flight, error) {
	f, ok := s.flights[id]
	if !ok {
		return model.Flight{}, assertErr
	}
	return f, nil
}

type errDummy struct{}

func (errDummy) Error() string { return "not found" }

var assertErr = errDummy{}

func newTestServer(t *testing.T, received *[]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*received = append(*received, r.Header.Get("Title"))
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAlertSendsBelledDestinationDirectly(t *testing.T) {
	var titles []string
	srv := newTestServer(t, &titles)
	defer srv.Close()

	st := newFakeStore()
	st.flights["out1"] = model.Flight{Destination: "BCN"}
	st.unnotified = []model.Deal{{ID: "d1", ProfileID: "p1", OutboundFlightID: "out1", TotalPricePP: 80}}

	push := notifier.NewPushClient(srv.URL, 100, 10)
	n := notifier.New(push, st, zerolog.Nop())

	profile := model.Profile{ID: "p1", NotifyDestinations: []string{"BCN"}}
	err := n.Alert(context.Background(), profile, "test-topic")
	require.NoError(t, err)

	assert.Len(t, titles, 1)
	assert.True(t, st.notified["d1"])
}

func TestAlertSummarizesUnbelledDestinations(t *testing.T) {
	var titles []string
	srv := newTestServer(t, &titles)
	defer srv.Close()

	st := newFakeStore()
	st.flights["out1"] = model.Flight{Destination: "BCN"}
	st.flights["out2"] = model.Flight{Destination: "MAD"}
	st.unnotified = []model.Deal{
		{ID: "d1", ProfileID: "p1", OutboundFlightID: "out1", TotalPricePP: 80},
		{ID: "d2", ProfileID: "p1", OutboundFlightID: "out2", TotalPricePP: 90},
	}

	push := notifier.NewPushClient(srv.URL, 100, 10)
	n := notifier.New(push, st, zerolog.Nop())

	profile := model.Profile{ID: "p1"} // no belled destinations
	err := n.Alert(context.Background(), profile, "test-topic")
	require.NoError(t, err)

	assert.Len(t, titles, 1, "unbelled destinations collapse into one summary push")
	assert.True(t, st.notified["d1"])
	assert.True(t, st.notified["d2"])
}

func TestAlertNoDealsIsNoop(t *testing.T) {
	var titles []string
	srv := newTestServer(t, &titles)
	defer srv.Close()

	st := newFakeStore()
	push := notifier.NewPushClient(srv.URL, 100, 10)
	n := notifier.New(push, st, zerolog.Nop())

	err := n.Alert(context.Background(), model.Profile{ID: "p1"}, "test-topic")
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestDigestListsDestinationsAscendingByPrice(t *testing.T) {
	var titles, bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles = append(titles, r.Header.Get("Title"))
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := newFakeStore()
	st.flights["out1"] = model.Flight{Destination: "BCN"}
	st.flights["out2"] = model.Flight{Destination: "MAD"}
	st.all = []model.Deal{
		{ID: "d1", ProfileID: "p1", OutboundFlightID: "out1", TotalPricePP: 90},
		{ID: "d2", ProfileID: "p1", OutboundFlightID: "out2", TotalPricePP: 60},
	}

	push := notifier.NewPushClient(srv.URL, 100, 10)
	n := notifier.New(push, st, zerolog.Nop())

	err := n.Digest(context.Background(), model.Profile{ID: "p1"}, "test-topic")
	require.NoError(t, err)
	require.Len(t, titles, 1)
	assert.Contains(t, titles[0], "2 destinations")
	require.Len(t, bodies, 1)
	assert.Equal(t, "MAD: 60.00\nBCN: 90.00", bodies[0])
}
