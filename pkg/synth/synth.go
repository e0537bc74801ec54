package synth

import (
	"github.com/sirupsen/logrus"

	"github.com/routelab-net/routelab/pkg/intent"
	"github.com/routelab-net/routelab/pkg/util"
)

// Result is one completed synthesis run.
type Result struct {
	Plan    *Plan
	Configs map[string]string // hostname -> rendered configuration text
	Order   []string          // hostnames in document order
}

// Synthesize resolves all allocations for a model and renders every
// router's configuration. Allocation failures abort the run; there is no
// partially rendered result.
func Synthesize(m *intent.Model) (*Result, error) {
	plan, err := buildPlan(m)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Plan:    plan,
		Configs: make(map[string]string, len(plan.Routers)),
	}
	for _, rp := range plan.Routers {
		text := renderRouter(plan, rp)
		result.Configs[rp.Router.Hostname] = text
		result.Order = append(result.Order, rp.Router.Hostname)

		util.Logger.WithFields(logrus.Fields{
			"router":     rp.Router.Hostname,
			"as":         rp.Router.ASNumber,
			"router_id":  rp.ID,
			"loopback":   rp.Loopback.String(),
			"interfaces": len(rp.Interfaces),
			"vrfs":       len(rp.VRFs),
		}).Debug("rendered configuration")
	}

	util.Logger.WithField("routers", len(result.Order)).Info("synthesis complete")
	return result, nil
}
