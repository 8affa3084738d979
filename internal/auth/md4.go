package auth

import md4pkg "golang.org/x/crypto/md4"

// md4 hashes data with MD4, the digest NTOWFv2/LMOWFv2 (MS-NLMP 3.3.2)
// build the NTLMv2 response key from.
func md4(data []byte) []byte {
	h := md4pkg.New()
	h.Write(data)
	return h.Sum(nil)
}
