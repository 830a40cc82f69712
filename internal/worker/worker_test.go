package worker

import (
	"context"
	"errors"
	"testing"

	"quickcart-search/internal/events"
)

type fakeIndexer struct {
	indexed  []string
	removed  []string
	cats     []string
	brands   []string
	indexErr error
}

func (f *fakeIndexer) IndexProduct(_ context.Context, id string) error {
	f.indexed = append(f.indexed, id)
	return f.indexErr
}

func (f *fakeIndexer) RemoveProduct(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeIndexer) ReindexCategory(_ context.Context, id string) (int, error) {
	f.cats = append(f.cats, id)
	return 1, nil
}

func (f *fakeIndexer) ReindexBrand(_ context.Context, id string) (int, error) {
	f.brands = append(f.brands, id)
	return 1, nil
}

func TestHandleDispatch(t *testing.T) {
	tests := []struct {
		eventType string
		check     func(*fakeIndexer) []string
	}{
		{events.TypeProductCreated, func(f *fakeIndexer) []string { return f.indexed }},
		{events.TypeProductUpdated, func(f *fakeIndexer) []string { return f.indexed }},
		{events.TypeVariantUpdated, func(f *fakeIndexer) []string { return f.indexed }},
		{events.TypePriceUpdated, func(f *fakeIndexer) []string { return f.indexed }},
		{events.TypeInventoryUpdated, func(f *fakeIndexer) []string { return f.indexed }},
		{events.TypeProductDeleted, func(f *fakeIndexer) []string { return f.removed }},
		{events.TypeCategoryUpdated, func(f *fakeIndexer) []string { return f.cats }},
		{events.TypeBrandUpdated, func(f *fakeIndexer) []string { return f.brands }},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			idx := &fakeIndexer{}
			w := New(idx, nil)

			evt := events.Event{ID: "e1", Type: tt.eventType, EntityID: "x1"}
			if err := w.handle(context.Background(), evt); err != nil {
				t.Fatal(err)
			}
			got := tt.check(idx)
			if len(got) != 1 || got[0] != "x1" {
				t.Errorf("dispatch = %v, want exactly [x1]", got)
			}
		})
	}
}

func TestHandleUnknownEventType(t *testing.T) {
	w := New(&fakeIndexer{}, nil)
	evt := events.Event{ID: "e1", Type: "catalog.exploded", EntityID: "x1"}
	if err := w.handle(context.Background(), evt); err == nil {
		t.Error("unknown event types must surface an error")
	}
}

func TestHandlePropagatesIndexerError(t *testing.T) {
	idx := &fakeIndexer{indexErr: errors.New("boom")}
	w := New(idx, nil)

	evt := events.Event{ID: "e1", Type: events.TypeProductUpdated, EntityID: "x1"}
	if err := w.handle(context.Background(), evt); err == nil {
		t.Error("handler errors must propagate so processing can log and count them")
	}
}
