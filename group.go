package mdtest

// Group is a test group: all fragments sharing one name, in document order.
type Group struct {
	Name      string
	Fragments []Fragment
}

// GroupFragments partitions fragments by name. Groups are ordered by the first
// appearance of their name, fragments inside a group keep their input order.
func GroupFragments(frags []Fragment) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, frag := range frags {
		i, ok := index[frag.Name]
		if !ok {
			i = len(groups)
			index[frag.Name] = i
			groups = append(groups, Group{Name: frag.Name})
		}
		groups[i].Fragments = append(groups[i].Fragments, frag)
	}
	return groups
}
