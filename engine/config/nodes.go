package config

import "sort"

// NodeSet is a set of node addresses, such as the start nodes of a redis cluster
type NodeSet map[string]struct{}

// Contains checks if the set contains addr
func (ns NodeSet) Contains(addr string) bool {
	_, ok := ns[addr]
	return ok
}

// Add adds addr to the set
func (ns NodeSet) Add(addr string) {
	ns[addr] = struct{}{}
}

// List returns the addresses in sorted order
func (ns NodeSet) List() []string {
	addrs := make([]string, 0, len(ns))
	for addr := range ns {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}
