package chain

import (
	"strings"

	"payrouter/internal/apperr"
	"payrouter/internal/config"
	"payrouter/internal/models"
)

// Registry holds the configured networks keyed by name.
type Registry struct {
	networks map[string]*Network
}

// NewRegistry dials every network in the blockchain config.
func NewRegistry(cfg config.BlockchainConfig) (*Registry, error) {
	networks := make(map[string]*Network, len(cfg.Networks))
	for name, nc := range cfg.Networks {
		network, err := NewNetwork(name, nc)
		if err != nil {
			return nil, err
		}
		networks[name] = network
	}
	return &Registry{networks: networks}, nil
}

func newRegistryWithNetworks(networks map[string]*Network) *Registry {
	return &Registry{networks: networks}
}

// Get returns the network by name.
func (r *Registry) Get(name string) (*Network, error) {
	network, ok := r.networks[name]
	if !ok {
		return nil, apperr.New(apperr.WrongParameters, "Unsupported network %s", name)
	}
	return network, nil
}

// ForPaymentType resolves a "crypto:<network>" payment type to its network.
func (r *Registry) ForPaymentType(paymentType string) (*Network, error) {
	name, ok := strings.CutPrefix(paymentType, models.ChannelTypeCrypto+":")
	if !ok {
		return nil, apperr.New(apperr.WrongParameters, "Payment type %s is not a crypto type", paymentType)
	}
	return r.Get(name)
}

// Names lists the configured network names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	return names
}

// All returns the configured networks.
func (r *Registry) All() []*Network {
	networks := make([]*Network, 0, len(r.networks))
	for _, network := range r.networks {
		networks = append(networks, network)
	}
	return networks
}
