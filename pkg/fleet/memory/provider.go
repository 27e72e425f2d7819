package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"elasticpool/internal/model"
	"elasticpool/pkg/interfaces"
)

// Provider in-process fleet, units start running as soon as they are launched
type Provider struct {
	mu        sync.Mutex
	now       func() time.Time
	seq       int
	units     map[string]*model.FleetUnit
	self      string
	launchErr error
	launchCap int // 0 means unlimited
}

// NewProvider creates an empty fleet
func NewProvider() *Provider {
	return &Provider{
		now:   time.Now,
		units: make(map[string]*model.FleetUnit),
	}
}

// SetClock overrides the time source used for LaunchedAt
func (p *Provider) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// SetSelfIdentity sets the id returned by SelfIdentity
func (p *Provider) SetSelfIdentity(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.self = id
}

// SetLaunchError makes every following Launch fail with err (nil clears it)
func (p *Provider) SetLaunchError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.launchErr = err
}

// SetLaunchCapacity caps how many units a single Launch provisions
func (p *Provider) SetLaunchCapacity(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.launchCap = n
}

// Add seeds an existing unit
func (p *Provider) Add(unit *model.FleetUnit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *unit
	p.units[u.ID] = &u
}

// Unit returns a copy of the unit with id
func (p *Provider) Unit(id string) (*model.FleetUnit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.units[id]
	if !ok {
		return nil, false
	}
	c := *u
	return &c, true
}

// List lists units matching filter, oldest first
func (p *Provider) List(ctx context.Context, filter interfaces.UnitFilter) ([]*model.FleetUnit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	units := make([]*model.FleetUnit, 0, len(p.units))
	for _, u := range p.units {
		if filter.Matches(u.State) {
			c := *u
			units = append(units, &c)
		}
	}
	sort.Slice(units, func(i, j int) bool {
		if !units[i].LaunchedAt.Equal(units[j].LaunchedAt) {
			return units[i].LaunchedAt.Before(units[j].LaunchedAt)
		}
		return units[i].ID < units[j].ID
	})
	return units, nil
}

// Launch provisions count running units
func (p *Provider) Launch(ctx context.Context, count int) ([]*model.FleetUnit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.launchErr != nil {
		return nil, p.launchErr
	}
	if p.launchCap > 0 && count > p.launchCap {
		count = p.launchCap
	}

	launched := make([]*model.FleetUnit, 0, count)
	for i := 0; i < count; i++ {
		p.seq++
		u := &model.FleetUnit{
			ID:         fmt.Sprintf("unit-%06d", p.seq),
			State:      model.UnitStateRunning,
			LaunchedAt: p.now(),
		}
		p.units[u.ID] = u
		c := *u
		launched = append(launched, &c)
	}
	return launched, nil
}

// Tag names a unit
func (p *Provider) Tag(ctx context.Context, unitID string, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.units[unitID]
	if !ok {
		return fmt.Errorf("unit not found: %s", unitID)
	}
	u.Name = name
	return nil
}

// Terminate marks units terminated, unknown ids are ignored
func (p *Provider) Terminate(ctx context.Context, unitIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range unitIDs {
		if u, ok := p.units[id]; ok {
			u.State = model.UnitStateTerminated
		}
	}
	return nil
}

// SelfIdentity returns the configured self id
func (p *Provider) SelfIdentity(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.self == "" {
		return "", fmt.Errorf("self identity not set")
	}
	return p.self, nil
}
