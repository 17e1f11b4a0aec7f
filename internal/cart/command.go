package cart

// Command is a tagged cart mutation consumed by Apply.
type Command interface {
	isCommand()
}

// AddItem merges a candidate line into the cart. The candidate's quantity is
// ignored: an existing matching line gains one unit, otherwise a new line is
// appended with quantity 1.
type AddItem struct {
	Item LineItem
}

// RemoveItem drops every line the selector matches.
type RemoveItem struct {
	Selector Selector
}

// UpdateQuantity sets the quantity on every selector-matched line, clamping
// to zero and pruning lines that land on zero.
type UpdateQuantity struct {
	Selector Selector
	Quantity int
}

// Clear empties the cart, leaving the visibility flag untouched.
type Clear struct{}

// Toggle flips the cart panel visibility.
type Toggle struct{}

// Open shows the cart panel.
type Open struct{}

// Close hides the cart panel.
type Close struct{}

func (AddItem) isCommand()        {}
func (RemoveItem) isCommand()     {}
func (UpdateQuantity) isCommand() {}
func (Clear) isCommand()          {}
func (Toggle) isCommand()         {}
func (Open) isCommand()           {}
func (Close) isCommand()          {}

// Apply is the pure cart transition function. It never mutates the input
// state, and every items-touching command leaves Total consistent with Items.
func Apply(state State, cmd Command) State {
	next := state.clone()
	switch c := cmd.(type) {
	case AddItem:
		next = applyAdd(next, c.Item)
	case RemoveItem:
		next = applyRemove(next, c.Selector)
	case UpdateQuantity:
		next = applyUpdateQuantity(next, c.Selector, c.Quantity)
	case Clear:
		next.Items = nil
		next = next.RecomputeTotal()
	case Toggle:
		next.IsOpen = !next.IsOpen
	case Open:
		next.IsOpen = true
	case Close:
		next.IsOpen = false
	}
	return next
}

func applyAdd(state State, candidate LineItem) State {
	candidate.ProductID = CanonicalProductID(candidate.ProductID)
	for i, item := range state.Items {
		if item.sameLine(candidate) {
			state.Items[i].Quantity++
			return state.RecomputeTotal()
		}
	}
	candidate.Quantity = 1
	state.Items = append(state.Items, candidate)
	return state.RecomputeTotal()
}

func applyRemove(state State, sel Selector) State {
	kept := state.Items[:0:0]
	for _, item := range state.Items {
		if !sel.Matches(item) {
			kept = append(kept, item)
		}
	}
	state.Items = kept
	return state.RecomputeTotal()
}

func applyUpdateQuantity(state State, sel Selector, quantity int) State {
	if quantity < 0 {
		quantity = 0
	}
	kept := state.Items[:0:0]
	for _, item := range state.Items {
		if sel.Matches(item) {
			item.Quantity = quantity
		}
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	state.Items = kept
	return state.RecomputeTotal()
}
