// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package admin

import "fmt"

// Subscriptions enumerates the destination's live consumers as
// management-addressable names composed from the broker address, the
// destination, the owning connection's client identifier and the
// subscription identifier. Order follows the destination's enumeration
// order and is consistent within one call only.
func (v *View) Subscriptions() ([]string, error) {
	subs := v.dest.Consumers()
	addrs := make([]string, 0, len(subs))
	for _, sub := range subs {
		clientID := sub.ClientID()
		if clientID == "" {
			return nil, fmt.Errorf("subscription %s has no connection client id", sub.ID())
		}
		addrs = append(addrs, fmt.Sprintf("%s/destinations/%s/subscriptions/%s/%s",
			v.broker.Address(), v.dest.Name(), clientID, sub.ID()))
	}
	return addrs, nil
}
