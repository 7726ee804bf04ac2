package room

// Normalize drops duplicate ids (first occurrence wins) and makes the
// earliest-joined player the only host. The input slice is not modified.
func Normalize(players []Player) []Player {
	out := make([]Player, 0, len(players))
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	for i := range out {
		out[i].IsHost = i == 0
	}
	return out
}

// Remove returns the roster without id, whether id was present and whether
// it held host. Host passes to the next player in join order.
func Remove(players []Player, id string) (rest []Player, removed Player, wasHost bool) {
	rest = make([]Player, 0, len(players))
	found := false
	for _, p := range players {
		if p.ID == id && !found {
			removed, wasHost, found = p, p.IsHost, true
			continue
		}
		rest = append(rest, p)
	}
	return Normalize(rest), removed, wasHost
}

// Find returns the player with id.
func Find(players []Player, id string) (Player, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Contains reports whether id is on the roster.
func Contains(players []Player, id string) bool {
	_, ok := Find(players, id)
	return ok
}

// Host returns the current host, if any.
func Host(players []Player) (Player, bool) {
	for _, p := range players {
		if p.IsHost {
			return p, true
		}
	}
	return Player{}, false
}

// AddDisconnected records p in the departed list once, newest last.
func AddDisconnected(list []Player, p Player) []Player {
	out := make([]Player, 0, len(list)+1)
	for _, d := range list {
		if d.ID != p.ID {
			out = append(out, d)
		}
	}
	p.IsHost = false
	return append(out, p)
}

// DropDisconnected removes id from the departed list.
func DropDisconnected(list []Player, id string) []Player {
	out := make([]Player, 0, len(list))
	for _, d := range list {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}
