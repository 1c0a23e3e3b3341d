package metadata

import "context"

// Source is the external metadata/response collaborator §1 treats as an
// out-of-scope interface: "returns station list and instrument-response
// gains". Production wiring talks to an FDSN station-web-service style
// endpoint; tests and the -simulate mode use a StaticSource.
type Source interface {
	FetchInventory(ctx context.Context) (*Inventory, error)
}

// StaticSource returns a fixed inventory, used by tests and by the
// simulated acquisition mode so the full pipeline runs without a live
// network.
type StaticSource struct {
	Inventory *Inventory
	Err       error
}

func (s StaticSource) FetchInventory(ctx context.Context) (*Inventory, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Inventory, nil
}
