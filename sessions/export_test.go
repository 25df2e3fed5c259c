package sessions

var SealRaw = sealRaw
