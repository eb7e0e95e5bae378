// FILE: universe.go
// Package main – Candidate universe loading and qualification.
//
// The universe file is YAML:
//
//	us:
//	  - AAPL
//	  - MSFT
//	eu:
//	  - symbol: ASML
//	    currency: EUR
//	    exchange: AEB
//
// US entries are plain symbols (SMART/USD); EU entries carry currency and a
// primary exchange, as produced by the market-data permission scan. The scan
// itself is a separate utility; this file only consumes its output.
//
// Qualification happens once at boot. Symbols the gateway cannot resolve are
// dropped with a log line; the loop never sees them.

package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// UniverseFile is the on-disk shape of the candidate whitelist.
type UniverseFile struct {
	US []string       `yaml:"us"`
	EU []ContractSpec `yaml:"eu"`
}

// Candidate is one tradeable instrument: its identity, the session region
// that gates it, and the resolved contract handle.
type Candidate struct {
	Region string
	Spec   ContractSpec
	Ref    *ContractRef
}

// SuppressKey derives the blacklist key for this candidate.
func (c *Candidate) SuppressKey() SuppressKey {
	return SuppressKey{
		Symbol:   c.Spec.Symbol,
		Currency: c.Spec.Currency,
		Exchange: c.Spec.PrimaryExchange,
	}
}

// loadUniverse parses the YAML whitelist.
func loadUniverse(path string) (UniverseFile, error) {
	var uf UniverseFile
	bs, err := os.ReadFile(path)
	if err != nil {
		return uf, errors.Wrapf(err, "read universe %s", path)
	}
	if err := yaml.Unmarshal(bs, &uf); err != nil {
		return uf, errors.Wrapf(err, "parse universe %s", path)
	}
	return uf, nil
}

// specs expands the file into unresolved contract specs tagged by region.
func (uf UniverseFile) specs() []Candidate {
	out := make([]Candidate, 0, len(uf.US)+len(uf.EU))
	for _, sym := range uf.US {
		out = append(out, Candidate{
			Region: "US",
			Spec:   ContractSpec{Symbol: sym, Currency: "USD"},
		})
	}
	for _, spec := range uf.EU {
		out = append(out, Candidate{Region: "EU", Spec: spec})
	}
	return out
}

// qualifyUniverse resolves every spec against the gateway. Unresolvable
// symbols are dropped (logged), matching the old behavior of ignoring
// qualify failures at boot. Order is preserved: it is the tiebreak for
// equal scores later.
func qualifyUniverse(ctx context.Context, gw Gateway, uf UniverseFile, reqTimeout time.Duration) []*Candidate {
	var out []*Candidate
	for _, c := range uf.specs() {
		c := c
		qctx, cancel := context.WithTimeout(ctx, reqTimeout)
		ref, err := gw.Qualify(qctx, c.Spec)
		cancel()
		if err != nil {
			logrus.Warnf("[BOOT] qualify %s (%s): dropped: %v", c.Spec.Symbol, c.Region, err)
			continue
		}
		c.Ref = ref
		out = append(out, &c)
	}
	logrus.Infof("[BOOT] qualified %d/%d universe symbols", len(out), len(uf.US)+len(uf.EU))
	return out
}
