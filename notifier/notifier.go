package notifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lesgoski/dealengine/model"
	"github.com/rs/zerolog"
)

// unbelledSummaryLimit caps how many destinations are named in the
// collective summary push for destinations the profile hasn't belled.
const unbelledSummaryLimit = 3

// digestLimit caps how many destinations appear in the daily digest.
const digestLimit = 15

// Store is the subset of store.Store the notifier needs.
type Store interface {
	UnnotifiedDealsForProfile(ctx context.Context, profileID string) ([]model.Deal, error)
	DealsForProfile(ctx context.Context, profileID string) ([]model.Deal, error)
	MarkNotified(ctx context.Context, dealID string) error
	FlightByID(ctx context.Context, id string) (model.Flight, error)
}

// Notifier decides which deals warrant a push and sends them.
type Notifier struct {
	push  *PushClient
	store Store
	log   zerolog.Logger
}

// New builds a Notifier.
func New(push *PushClient, store Store, log zerolog.Logger) *Notifier {
	return &Notifier{push: push, store: store, log: log.With().Str("component", "notifier").Logger()}
}

type destinationDeal struct {
	destination string
	deal        model.Deal
}

// cheapestPerDestination groups deals by their outbound flight's
// destination and keeps only the cheapest one for each, resolving
// deals that reference a missing flight by dropping them (those are
// pruned separately by the scheduler).
func (n *Notifier) cheapestPerDestination(ctx context.Context, deals []model.Deal) ([]destinationDeal, error) {
	best := make(map[string]destinationDeal)
	for _, d := range deals {
		out, err := n.store.FlightByID(ctx, d.OutboundFlightID)
		if err != nil {
			n.log.Warn().Err(err).Str("deal_id", d.ID).Msg("deal references missing outbound flight, skipping")
			continue
		}
		cur, ok := best[out.Destination]
		if !ok || d.TotalPricePP < cur.deal.TotalPricePP {
			best[out.Destination] = destinationDeal{destination: out.Destination, deal: d}
		}
	}

	out := make([]destinationDeal, 0, len(best))
	for _, dd := range best {
		out = append(out, dd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].deal.TotalPricePP < out[j].deal.TotalPricePP })
	return out, nil
}

// Alert runs the per-profile realtime alert pass: belled destinations
// get an individual push, unbelled destinations collectively get one
// summary push naming the cheapest few. Every unnotified deal loaded
// this pass is marked notified regardless of whether a push actually
// fired, so it is not re-offered next run.
func (n *Notifier) Alert(ctx context.Context, profile model.Profile, channel string) error {
	unnotified, err := n.store.UnnotifiedDealsForProfile(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("notifier: load unnotified deals: %w", err)
	}
	if len(unnotified) == 0 {
		return nil
	}

	byDest, err := n.cheapestPerDestination(ctx, unnotified)
	if err != nil {
		return err
	}
	if len(byDest) == 0 {
		return nil
	}

	belledSet := toSet(profile.NotifyDestinations)

	var belled, unbelled []destinationDeal
	for _, dd := range byDest {
		if belledSet[dd.destination] {
			belled = append(belled, dd)
		} else {
			unbelled = append(unbelled, dd)
		}
	}

	for _, dd := range belled {
		title := fmt.Sprintf("Deal to %s: %.2f", dd.destination, dd.deal.TotalPricePP)
		if err := n.push.Send(ctx, channel, title, "", dd.destination, "default", title); err != nil {
			n.log.Warn().Err(err).Str("destination", dd.destination).Msg("push failed")
		}
	}

	if len(unbelled) > 0 {
		limit := unbelledSummaryLimit
		if limit > len(unbelled) {
			limit = len(unbelled)
		}
		body := summarize(unbelled[:limit])
		title := fmt.Sprintf("%d new weekend deals", len(unbelled))
		if err := n.push.Send(ctx, channel, title, "", "weekend-deals", "default", body); err != nil {
			n.log.Warn().Err(err).Msg("summary push failed")
		}
	}

	for _, d := range unnotified {
		if err := n.store.MarkNotified(ctx, d.ID); err != nil {
			return fmt.Errorf("notifier: mark notified: %w", err)
		}
	}
	return nil
}

// Digest sends one aggregated push listing up to digestLimit
// destinations ascending by price, regardless of their notified state.
func (n *Notifier) Digest(ctx context.Context, profile model.Profile, channel string) error {
	deals, err := n.store.DealsForProfile(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("notifier: load deals for digest: %w", err)
	}
	if len(deals) == 0 {
		return nil
	}

	byDest, err := n.cheapestPerDestination(ctx, deals)
	if err != nil {
		return err
	}
	if len(byDest) == 0 {
		return nil
	}

	limit := digestLimit
	if limit > len(byDest) {
		limit = len(byDest)
	}
	body := summarize(byDest[:limit])
	title := fmt.Sprintf("Daily digest: %d destinations", len(byDest))
	if err := n.push.Send(ctx, channel, title, "", "digest", "low", body); err != nil {
		n.log.Warn().Err(err).Msg("digest push failed")
	}
	return nil
}

func summarize(dds []destinationDeal) string {
	lines := make([]string, 0, len(dds))
	for _, dd := range dds {
		lines = append(lines, fmt.Sprintf("%s: %.2f", dd.destination, dd.deal.TotalPricePP))
	}
	return strings.Join(lines, "\n")
}

func toSet(vs []string) map[string]bool {
	m := make(map[string]bool, len(vs))
	for _, v := range vs {
		m[v] = true
	}
	return m
}
