// Package gwdisco advertises and browses a _t38._udp DNS-SD service so
// two faxgw gateway processes can find each other's T.38 endpoint
// without static IP configuration (SPEC_FULL.md §6's enrichment).
//
// Grounded directly on src/dns_sd.go's dnssd.Config/NewService/
// NewResponder pattern, generalized from announcing a single KISS-TCP
// port to announcing a T.38 peer's address plus its negotiated
// capabilities as DNS-SD TXT records.
package gwdisco

import (
	"context"
	"fmt"
	"strconv"

	"github.com/brutella/dnssd"

	"github.com/xrg/gofax30/dwlog"
)

// ServiceType is the DNS-SD service type faxgw gateways advertise
// under.
const ServiceType = "_t38._udp"

// Peer describes one gateway endpoint discovered on the LAN.
type Peer struct {
	Name    string
	Host    string
	Port    int
	Version int
	ECM     bool
	Modems  string
}

// Advertiser announces this process's T.38 endpoint.
type Advertiser struct {
	log       dwlog.Logger
	responder dnssd.Responder
}

// Advertise registers name/port plus the negotiated capability TXT
// records and starts responding to mDNS queries in the background.
// Matches src/dns_sd.go's announce/responder pairing exactly, generalized
// to carry T.38 capability TXT records instead of none.
func Advertise(ctx context.Context, name string, port int, version int, ecm bool, modems string) (*Advertiser, error) {
	log := dwlog.For("gwdisco")

	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
		Text: map[string]string{
			"version": strconv.Itoa(version),
			"ecm":     strconv.FormatBool(ecm),
			"modems":  modems,
		},
	}
	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("gwdisco: creating service: %w", err)
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("gwdisco: creating responder: %w", err)
	}
	if _, err := rp.Add(sv); err != nil {
		return nil, fmt.Errorf("gwdisco: adding service: %w", err)
	}

	log.Info("advertising T.38 gateway", "name", name, "port", port)
	go func() {
		if err := rp.Respond(ctx); err != nil {
			log.Error("gwdisco responder stopped", "err", err)
		}
	}()

	return &Advertiser{log: log, responder: rp}, nil
}

// Browse watches the LAN for other faxgw gateways and invokes onPeer
// for each one found, until ctx is cancelled.
func Browse(ctx context.Context, onPeer func(Peer)) error {
	log := dwlog.For("gwdisco")
	add := func(e dnssd.BrowseEntry) {
		peer := Peer{
			Name:    e.Name,
			Version: parseIntOr(e.Text["version"], 1),
			ECM:     e.Text["ecm"] == "true",
			Modems:  e.Text["modems"],
		}
		if len(e.IPs) > 0 {
			peer.Host = e.IPs[0].String()
		}
		peer.Port = e.Port
		onPeer(peer)
	}
	rmv := func(e dnssd.BrowseEntry) {
		log.Debug("gwdisco peer gone", "name", e.Name)
	}
	return dnssd.LookupType(ctx, ServiceType+".local.", add, rmv)
}

func parseIntOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
