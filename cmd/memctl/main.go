// Command memctl drives the hostmem allocator with synthetic workloads and
// reports what its strategies did.
package main

func main() {
	execute()
}
