// Package lockon serializes calls that share a monitor value.
//
// A guarded call names one of its inputs as the lock-on argument, optionally
// with a field path into it. The value found there is the monitor: calls with
// equal monitors (compared with ==) run one at a time, calls with different
// monitors run concurrently. Monitors are interned in an intern.Registry, so
// nothing is retained once the last call using a monitor returns.
//
// Interceptor.Guard works on call descriptors produced by an interception
// layer. Decorate and Decorate2 wrap typed functions with a key accessor and
// need no reflection at all.
package lockon
