// Package vcard models flat vCard contacts and decodes them from text.
package vcard

import "slices"

// Property is a single named field of a contact. A nil Value marks a
// property that was present without a value.
type Property struct {
	Name  string
	Value *string
}

// Prop returns a property carrying value.
func Prop(name, value string) Property {
	return Property{Name: name, Value: &value}
}

// Valueless returns a property with no value.
func Valueless(name string) Property {
	return Property{Name: name}
}

// Text returns a copy of the value and whether one is present.
func (p Property) Text() (string, bool) {
	if p.Value == nil {
		return "", false
	}
	return *p.Value, true
}

// Contact is one vCard entry. Properties keep the order the decoder saw them in.
type Contact struct {
	Line       int // Line of the BEGIN:VCARD that opened this contact.
	Properties []Property
}

// Index returns the position of the first property named name, or -1.
// Names are compared exactly.
func (c *Contact) Index(name string) int {
	return slices.IndexFunc(c.Properties, func(p Property) bool {
		return p.Name == name
	})
}

// Remove deletes the property at i and returns it. Order of the rest is kept.
func (c *Contact) Remove(i int) Property {
	p := c.Properties[i]
	c.Properties = slices.Delete(c.Properties, i, i+1)
	return p
}

// Clone returns a deep copy of c; values are not shared with the original.
func (c *Contact) Clone() *Contact {
	out := &Contact{Line: c.Line, Properties: make([]Property, len(c.Properties))}
	for i, p := range c.Properties {
		out.Properties[i] = Property{Name: p.Name}
		if v, ok := p.Text(); ok {
			out.Properties[i].Value = &v
		}
	}
	return out
}
