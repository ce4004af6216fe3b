package runtime

import (
	"fmt"
	"math"
)

// Field is one decoded register block of a response frame, before the
// registry attaches a name and unit label.
type Field struct {
	CommandID int
	UnitCode  byte
	Exponent  int
	Magnitude int64
}

// Reading is one decoded register value of a polling session.
// The effective value is Magnitude scaled by the decimal exponent; the
// meter's sign bit is already folded into Magnitude.
type Reading struct {
	CommandID int
	Name      string
	UnitCode  byte
	Unit      string
	Magnitude int64
	Exponent  int
}

func (r *Reading) Value() float64 {
	return float64(r.Magnitude) * math.Pow(10, float64(r.Exponent))
}

func (r *Reading) String() string {
	return fmt.Sprintf("%s %v %s", r.Name, r.Value(), r.Unit)
}

// Catalog holds the readings of one session keyed by command id,
// preserving response order. Built once, read-only afterwards.
type Catalog struct {
	order    []int
	readings map[int]*Reading
}

func NewCatalog() *Catalog {
	return &Catalog{readings: map[int]*Reading{}}
}

func (c *Catalog) Insert(r *Reading) {
	if _, ok := c.readings[r.CommandID]; !ok {
		c.order = append(c.order, r.CommandID)
	}
	c.readings[r.CommandID] = r
}

func (c *Catalog) Get(id int) (*Reading, bool) {
	r, ok := c.readings[id]
	return r, ok
}

func (c *Catalog) Len() int {
	return len(c.order)
}

// CommandIDs returns the ids in response order.
func (c *Catalog) CommandIDs() []int {
	ids := make([]int, len(c.order))
	copy(ids, c.order)
	return ids
}
