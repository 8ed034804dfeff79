// Package item defines the immutable attribute set of a mintable item.
package item

// Attributes describes one mintable item. Two values with identical fields
// produce identical commitments; attributes are not unique across items, so
// several items may share a name, kind and rarity.
//
// HasSex distinguishes the character item family (which carries a sex field)
// from the machine family (which does not). When HasSex is false the Sex
// byte is omitted from every digest.
type Attributes struct {
	Name   string `json:"name"`
	Kind   uint8  `json:"kind"`
	Sex    uint8  `json:"sex,omitempty"`
	HasSex bool   `json:"has_sex,omitempty"`
	Rarity uint8  `json:"rarity"`
}

// Character builds attributes for the character item family.
func Character(name string, kind, sex, rarity uint8) Attributes {
	return Attributes{Name: name, Kind: kind, Sex: sex, HasSex: true, Rarity: rarity}
}

// Machine builds attributes for the machine item family (no sex field).
func Machine(name string, kind, rarity uint8) Attributes {
	return Attributes{Name: name, Kind: kind, Rarity: rarity}
}
