/*
Package network provides host port allocation for runner containers.

The allocator is stateless: it asks the kernel for a free ephemeral port by
binding to port 0 and immediately releasing it. Exclusivity is enforced by
the registry record that holds the port, not by this package.
*/
package network
