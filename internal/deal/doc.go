// Package deal defines the row model shared by every pipeline stage: the
// status lifecycle, the explicit legal transition set, and the column naming
// contract of the shared store.
package deal
