package servient

import (
	"net/url"
	"sort"
	"time"

	"github.com/linksmart/wot-servient/wot"
)

const defaultSecurityName = "nosec_sc"

// buildTD derives the Thing Description from the Thing's metadata and the current interactions.
// The result shares no memory with the store.
func buildTD(meta wot.ThingDescription, s *store, modified time.Time) (wot.ThingDescription, error) {
	td := meta
	properties, actions, events := s.affordances()

	td.Properties = make(map[string]wot.PropertyAffordance, len(properties))
	for name, p := range properties {
		if len(p.Forms) == 0 {
			p.Forms = []wot.Form{defaultForm(KindProperty, name, propertyOps(p)...)}
		}
		td.Properties[name] = p
	}
	td.Actions = make(map[string]wot.ActionAffordance, len(actions))
	for name, a := range actions {
		if len(a.Forms) == 0 {
			a.Forms = []wot.Form{defaultForm(KindAction, name, wot.OpInvokeAction)}
		}
		td.Actions[name] = a
	}
	td.Events = make(map[string]wot.EventAffordance, len(events))
	for name, e := range events {
		if len(e.Forms) == 0 {
			e.Forms = []wot.Form{defaultForm(KindEvent, name, wot.OpSubscribeEvent, wot.OpUnsubscribeEvent)}
		}
		td.Events[name] = e
	}

	if td.Context == nil {
		td.Context = wot.DefaultContext
	}
	if len(td.SecurityDefinitions) == 0 {
		td.SecurityDefinitions = map[string]wot.SecurityScheme{defaultSecurityName: wot.NoSecurity()}
		td.Security = wot.Strings{defaultSecurityName}
	} else if len(td.Security) == 0 {
		for name := range td.SecurityDefinitions {
			td.Security = append(td.Security, name)
		}
		sort.Strings(td.Security)
	}
	if !modified.IsZero() {
		m := modified.UTC()
		td.Modified = &m
	}

	return td.Copy()
}

func propertyOps(p wot.PropertyAffordance) []string {
	var ops []string
	if !p.WriteOnly {
		ops = append(ops, wot.OpReadProperty)
	}
	if p.Writable() {
		ops = append(ops, wot.OpWriteProperty)
	}
	if p.Observable {
		ops = append(ops, wot.OpObserveProperty, wot.OpUnobserveProperty)
	}
	return ops
}

// interaction paths of the default forms, relative to the Thing's base
var formPaths = map[InteractionKind]string{
	KindProperty: "properties",
	KindAction:   "actions",
	KindEvent:    "events",
}

// defaultForm targets {properties|actions|events}/{name} relative to the Thing's base
func defaultForm(kind InteractionKind, name string, ops ...string) wot.Form {
	return wot.Form{
		Href:        formPaths[kind] + "/" + url.PathEscape(name),
		ContentType: wot.DefaultContentType,
		Op:          ops,
	}
}

// metadataOf strips the interactions from a TD
func metadataOf(td wot.ThingDescription) wot.ThingDescription {
	td.Properties = nil
	td.Actions = nil
	td.Events = nil
	return td
}
