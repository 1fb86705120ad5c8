package websocket

import (
	"fmt"
	"sort"
	"strings"
)

var knownEntities = map[EntityType]bool{
	EntityTypeAccount:    true,
	EntityTypeTransfer:   true,
	EntityTypeReceivable: true,
	EntityTypeExpense:    true,
	EntityTypeAdvance:    true,
}

// Subscription selects the events a client receives. An empty account set
// matches every account and an empty entity set matches every entity.
type Subscription struct {
	accounts map[string]bool
	entities map[EntityType]bool
}

// ParseSubscription reads comma separated account ids and entity names,
// e.g. accounts "kas,bank" and entities "transfer,expense"
func ParseSubscription(accounts, entities string) (Subscription, error) {
	sub := Subscription{}
	for _, id := range splitComma(accounts) {
		if sub.accounts == nil {
			sub.accounts = make(map[string]bool)
		}
		sub.accounts[id] = true
	}
	for _, name := range splitComma(entities) {
		entity := EntityType(strings.ToLower(name))
		if !knownEntities[entity] {
			return Subscription{}, fmt.Errorf("unknown entity %q", name)
		}
		if sub.entities == nil {
			sub.entities = make(map[EntityType]bool)
		}
		sub.entities[entity] = true
	}
	return sub, nil
}

// Matches reports whether event should be delivered under s
func (s Subscription) Matches(event Event) bool {
	if len(s.entities) > 0 && !s.entities[event.Entity] {
		return false
	}
	if len(s.accounts) == 0 {
		return true
	}
	for id := range s.accounts {
		if event.Touches(id) {
			return true
		}
	}
	return false
}

// Accounts returns the watched account ids in order, nil when all are watched
func (s Subscription) Accounts() []string {
	if len(s.accounts) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
