package approvals

import (
	"fmt"
	"strings"
)

// Department is one of the five fixed reviewing departments.
type Department string

const (
	DeptProcurement Department = "procurement"
	DeptLogistics   Department = "logistics"
	DeptCustoms     Department = "customs"
	DeptSales       Department = "sales"
	DeptControl     Department = "control"
)

// Departments lists the five departments in review order. Logistics and
// customs are siblings at the same rank.
func Departments() []Department {
	return []Department{DeptProcurement, DeptLogistics, DeptCustoms, DeptSales, DeptControl}
}

// deptRank orders departments along the dependency chain. Siblings share a
// rank.
var deptRank = map[Department]int{
	DeptProcurement: 0,
	DeptLogistics:   1,
	DeptCustoms:     1,
	DeptSales:       2,
	DeptControl:     3,
}

// prerequisites names the departments that must have approved before a
// department may approve: procurement → (logistics ∥ customs) → sales →
// control.
var prerequisites = map[Department][]Department{
	DeptProcurement: nil,
	DeptLogistics:   {DeptProcurement},
	DeptCustoms:     {DeptProcurement},
	DeptSales:       {DeptLogistics, DeptCustoms},
	DeptControl:     {DeptSales},
}

// ParseDepartment validates a raw department name.
func ParseDepartment(raw string) (Department, error) {
	d := Department(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := deptRank[d]; !ok {
		return "", fmt.Errorf("approvals: unknown department %q", raw)
	}
	return d, nil
}

// Prerequisites returns the direct upstream departments of a department.
func Prerequisites(d Department) []Department {
	return append([]Department(nil), prerequisites[d]...)
}

// Downstream returns every department strictly after d in the dependency
// order, in review order. Rejecting d clears exactly these. Siblings share a
// rank and are never downstream of each other.
func Downstream(d Department) []Department {
	var out []Department
	for _, other := range Departments() {
		if deptRank[other] > deptRank[d] {
			out = append(out, other)
		}
	}
	return out
}

func (d Department) String() string { return string(d) }
