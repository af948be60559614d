package enums

// MutationOp is the kind of write a unit of work applies to a collection.
type MutationOp string

const (
	MutationOpInsert MutationOp = "insert"
	MutationOpPut    MutationOp = "put"
	MutationOpDelete MutationOp = "delete"
	MutationOpClear  MutationOp = "clear"
)

var validMutationOps = []MutationOp{
	MutationOpInsert,
	MutationOpPut,
	MutationOpDelete,
	MutationOpClear,
}

func (m MutationOp) String() string {
	return string(m)
}

func (m MutationOp) IsValid() bool {
	for _, candidate := range validMutationOps {
		if candidate == m {
			return true
		}
	}
	return false
}

// NeedsRecord reports whether the op carries a record payload.
func (m MutationOp) NeedsRecord() bool {
	return m == MutationOpInsert || m == MutationOpPut
}
