// ABOUTME: Package gateway wires every Courier component into one HTTP process
// ABOUTME: Lifecycle Supervisor: startup ordering, the Ingress/Control APIs, and signal-driven shutdown

package gateway
