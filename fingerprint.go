package framegraph

import "encoding/binary"

// fingerprint encodes everything a compile reads: the declarations in
// order, the versions of the resources they reference and the pass-set
// generation. Two snapshots with equal fingerprints compile to the same
// plan.
func fingerprint(decls []passDecl, reg *registry, topology uint64) string {
	buf := make([]byte, 0, 64+len(decls)*32)
	buf = binary.AppendUvarint(buf, topology)
	for _, d := range decls {
		buf = binary.AppendUvarint(buf, uint64(d.id))
		buf = binary.AppendUvarint(buf, uint64(len(d.name)))
		buf = append(buf, d.name...)
		buf = append(buf, byte(d.typ))
		buf = binary.AppendUvarint(buf, uint64(len(d.access)))
		for _, a := range d.access {
			buf = binary.AppendUvarint(buf, uint64(a.res))
			var flags byte
			if a.read {
				flags |= 1
			}
			if a.write {
				flags |= 2
			}
			buf = append(buf, flags)
			buf = binary.AppendUvarint(buf, reg.entries[a.res].version)
		}
	}
	return string(buf)
}
