package symbols

// UpdateNest re-binds the variables of a nest tree after parsing. A nested
// function shares every non-formal variable its nest parent can see; the
// top of the tree gets a static workspace. Global and persistent
// declarations are only legal at the top.
func (s *Scope) UpdateNest() error {
	if s.fcn != nil && (s.nestParent != NoScope || len(s.nestChildren) > 0) {
		s.fcn.nested = true
	}

	if parent := s.parent(); parent != nil {
		for _, name := range s.sortedNames() {
			ours := s.table[name]
			if ours.IsFormal() {
				ours.setCurrFcn(s.fcn)
				continue
			}
			theirs, ok := parent.lookNonlocal(name)
			if !ok {
				ours.setCurrFcn(s.fcn)
				continue
			}
			if theirs == ours {
				continue
			}
			if ours.IsGlobal() || ours.IsPersistent() {
				return &DeclarationError{
					Name:   name,
					Reason: "global and persistent may only be used in the topmost level in which a nested variable is used",
				}
			}
			ours.invalidate()
			s.table[name] = theirs
		}
	} else if len(s.nestChildren) > 0 {
		s.staticWorkspace = true
		for _, sr := range s.table {
			sr.setCurrFcn(s.fcn)
		}
	}

	for _, id := range s.nestChildren {
		child := s.registry.scopes[id]
		if child == nil {
			continue
		}
		if err := child.UpdateNest(); err != nil {
			return err
		}
	}
	return nil
}

// UpdateNest runs nest resolution starting at scope id.
func (r *Registry) UpdateNest(id ScopeID) error {
	s := r.scopes[id]
	if s == nil {
		return ErrInvalidScope
	}
	return s.UpdateNest()
}
