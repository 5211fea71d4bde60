package redisb

// keySet builds the tenant-scoped key space. Layout:
//
//	board:{tenant}:listing:{id}   listing document (JSON)
//	board:{tenant}:listings       set of listing ids
//	board:{tenant}:events         pub/sub channel for listing changes
//	board:{tenant}:session:{uid}  session record (JSON, TTL'd)
//	board:{tenant}:sessions       set of session uids
//	board:{tenant}:auth           pub/sub channel carrying revoked uids
//
// Everything hangs off the tenant, so deployments sharing a Redis never
// touch each other's keys.
type keySet struct {
	prefix string
}

func newKeySet(tenant string) keySet {
	return keySet{prefix: "board:" + tenant}
}

func (k keySet) listing(id string) string {
	return k.prefix + ":listing:" + id
}

func (k keySet) listingIndex() string {
	return k.prefix + ":listings"
}

func (k keySet) events() string {
	return k.prefix + ":events"
}

func (k keySet) session(uid string) string {
	return k.prefix + ":session:" + uid
}

func (k keySet) sessionIndex() string {
	return k.prefix + ":sessions"
}

func (k keySet) auth() string {
	return k.prefix + ":auth"
}
