package notifications

import "sort"

// defaultChannels lists the channels a type starts with. In-app is
// always present; expiry and billing types also mail by default.
func defaultChannels(t Type) []Channel {
	switch t {
	case TypeCertificationExpiry, TypeSubscription:
		return []Channel{ChannelInApp, ChannelEmail}
	default:
		return []Channel{ChannelInApp}
	}
}

// PrefSet holds a user's notification preferences. The zero value is
// usable: unknown types default to enabled with default channels.
type PrefSet struct {
	Prefs map[Type]Preference `json:"prefs"`
}

// NewPrefSet returns an empty preference set.
func NewPrefSet() *PrefSet {
	return &PrefSet{Prefs: make(map[Type]Preference)}
}

func (p *PrefSet) lookup(t Type) Preference {
	if p != nil && p.Prefs != nil {
		if pref, ok := p.Prefs[t]; ok {
			return pref
		}
	}
	return Preference{Type: t, Enabled: true, Channels: defaultChannels(t)}
}

func (p *PrefSet) put(pref Preference) {
	if p.Prefs == nil {
		p.Prefs = make(map[Type]Preference)
	}
	p.Prefs[pref.Type] = pref
}

// Enabled reports whether the type is enabled. Unknown types default to
// true.
func (p *PrefSet) Enabled(t Type) bool {
	return p.lookup(t).Enabled
}

// Channels returns the delivery channels for an enabled type, nil when
// the type is disabled.
func (p *PrefSet) Channels(t Type) []Channel {
	pref := p.lookup(t)
	if !pref.Enabled {
		return nil
	}
	return append([]Channel(nil), pref.Channels...)
}

// HasChannel reports whether the channel is active for the type.
func (p *PrefSet) HasChannel(t Type, ch Channel) bool {
	for _, c := range p.Channels(t) {
		if c == ch {
			return true
		}
	}
	return false
}

// ToggleType flips the enabled flag. The channel list is retained while
// disabled so re-enabling restores it unchanged.
func (p *PrefSet) ToggleType(t Type) {
	pref := p.lookup(t)
	pref.Enabled = !pref.Enabled
	p.put(pref)
}

// SetType sets the enabled flag explicitly.
func (p *PrefSet) SetType(t Type, enabled bool) {
	pref := p.lookup(t)
	pref.Enabled = enabled
	p.put(pref)
}

// ToggleChannel adds or removes a delivery channel. Removing in-app from
// an enabled type is rejected.
func (p *PrefSet) ToggleChannel(t Type, ch Channel) error {
	pref := p.lookup(t)
	for i, c := range pref.Channels {
		if c == ch {
			if ch == ChannelInApp && pref.Enabled {
				return ErrInAppRequired
			}
			pref.Channels = append(pref.Channels[:i], pref.Channels[i+1:]...)
			p.put(pref)
			return nil
		}
	}
	pref.Channels = append(pref.Channels, ch)
	p.put(pref)
	return nil
}

// SetCategory bulk-enables or disables every type in the category.
func (p *PrefSet) SetCategory(cat Category, enabled bool) {
	for _, t := range TypesIn(cat) {
		p.SetType(t, enabled)
	}
}

// CategoryEnabled reports whether every type in the category is enabled.
func (p *PrefSet) CategoryEnabled(cat Category) bool {
	types := TypesIn(cat)
	if len(types) == 0 {
		return false
	}
	for _, t := range types {
		if !p.Enabled(t) {
			return false
		}
	}
	return true
}

// CategoryPartiallyEnabled reports whether strictly some, but not all,
// types in the category are enabled. Used for indeterminate UI state.
func (p *PrefSet) CategoryPartiallyEnabled(cat Category) bool {
	types := TypesIn(cat)
	enabled := 0
	for _, t := range types {
		if p.Enabled(t) {
			enabled++
		}
	}
	return enabled > 0 && enabled < len(types)
}

// List materialises the full preference list, defaults included, in
// stable type order.
func (p *PrefSet) List() []Preference {
	var out []Preference
	for _, types := range categories {
		for _, t := range types {
			out = append(out, p.lookup(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
