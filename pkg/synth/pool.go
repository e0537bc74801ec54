package synth

import (
	"fmt"

	"github.com/routelab-net/routelab/pkg/util"
)

// interfacePoolTemplate is the ordered physical interface pool of the lab
// router image. Every router gets its own working copy; the template is
// never mutated.
var interfacePoolTemplate = []string{
	"FastEthernet0/0",
	"GigabitEthernet1/0",
	"GigabitEthernet2/0",
	"GigabitEthernet3/0",
	"GigabitEthernet4/0",
	"GigabitEthernet5/0",
	"GigabitEthernet6/0",
}

// InterfacePoolSize is the number of physical interfaces per router.
var InterfacePoolSize = len(interfacePoolTemplate)

// ifacePool tracks interface assignment for one router.
type ifacePool struct {
	hostname string
	free     []string
	taken    map[string]bool
}

func newIfacePool(hostname string) *ifacePool {
	p := &ifacePool{
		hostname: hostname,
		free:     make([]string, len(interfacePoolTemplate)),
		taken:    make(map[string]bool),
	}
	copy(p.free, interfacePoolTemplate)
	return p
}

// reserve claims an explicitly named interface. The name must be a pool
// member and still unassigned on this router.
func (p *ifacePool) reserve(name string) error {
	for i, candidate := range p.free {
		if candidate == name {
			p.free = append(p.free[:i], p.free[i+1:]...)
			p.taken[name] = true
			return nil
		}
	}
	if p.taken[name] {
		return fmt.Errorf("router %s: interface %s assigned twice: %w",
			p.hostname, name, util.ErrInterfaceConflict)
	}
	return fmt.Errorf("router %s: interface %s is not in the standard pool: %w",
		p.hostname, name, util.ErrInterfaceConflict)
}

// popFirst claims the first still-available pool interface.
func (p *ifacePool) popFirst() (string, error) {
	if len(p.free) == 0 {
		return "", fmt.Errorf("router %s: all %d interfaces assigned: %w",
			p.hostname, len(interfacePoolTemplate), util.ErrInterfaceExhausted)
	}
	name := p.free[0]
	p.free = p.free[1:]
	p.taken[name] = true
	return name, nil
}
