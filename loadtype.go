package feedcache

import "fmt"

// LoadType selects what a load cycle does. The set is closed: Refresh,
// Append and Prepend are the only implementations.
type LoadType interface {
	fmt.Stringer
	isLoadType()
}

// Refresh discards the partition and reloads it from the first page.
type Refresh struct{}

// Append fetches the page after the stored cursor and extends the partition.
type Append struct{}

// Prepend is accepted for completeness but backward pagination is not
// supported; it always reports end of pagination.
type Prepend struct{}

func (Refresh) isLoadType() {}
func (Append) isLoadType()  {}
func (Prepend) isLoadType() {}

func (Refresh) String() string { return "refresh" }
func (Append) String() string  { return "append" }
func (Prepend) String() string { return "prepend" }
