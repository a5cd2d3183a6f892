package lobby

import "sort"

// RequestLists is one identity's view of the request graph.
type RequestLists struct {
	Outgoing []string
	Incoming []string
}

// Snapshot is a consistent view of lobby state taken after a mutation.
type Snapshot struct {
	Connected []string
	Ready     []string
	Requests  map[string]RequestLists
}

// Notice names what changed and who has to hear about it.
type Notice struct {
	// ReadyChanged sends the readiness list to every connected identity.
	ReadyChanged bool
	// ReadyTo sends the readiness list to these identities only.
	ReadyTo []string
	// Requests sends each listed identity its own request lists.
	Requests []string
	// Redirects are addressed to matched identities, which are no longer connected.
	Redirects map[string]Redirect
}

// Delivery is a single event addressed to an identity.
type Delivery struct {
	To    string
	Event *Event
}

// Plan turns a notice into the deliveries it implies. It performs no I/O and
// does not touch hub state, so it can be exercised without a transport.
// Identities that are not connected are skipped, except for redirects.
func Plan(snap Snapshot, n Notice) []Delivery {
	connected := make(map[string]struct{}, len(snap.Connected))
	for _, id := range snap.Connected {
		connected[id] = struct{}{}
	}

	var out []Delivery

	redirectTo := make([]string, 0, len(n.Redirects))
	for id := range n.Redirects {
		redirectTo = append(redirectTo, id)
	}
	sort.Strings(redirectTo)
	for _, id := range redirectTo {
		r := n.Redirects[id]
		out = append(out, Delivery{To: id, Event: &Event{Kind: EventRedirect, Redirect: &r}})
	}

	for _, id := range dedupe(n.Requests) {
		if _, ok := connected[id]; !ok {
			continue
		}
		lists := snap.Requests[id]
		out = append(out, Delivery{To: id, Event: &Event{
			Kind:     EventRequestLists,
			Outgoing: orEmpty(lists.Outgoing),
			Incoming: orEmpty(lists.Incoming),
		}})
	}

	readyTo := n.ReadyTo
	if n.ReadyChanged {
		readyTo = snap.Connected
	}
	ready := orEmpty(snap.Ready)
	for _, id := range dedupe(readyTo) {
		if _, ok := connected[id]; !ok {
			continue
		}
		out = append(out, Delivery{To: id, Event: &Event{Kind: EventReadyUsers, ReadyUsers: ready}})
	}

	return out
}

func dedupe(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return sortedKeys(set)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
