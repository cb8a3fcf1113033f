package arch

func unboundInstruction(name string) string {
	return "kmem/arch: instruction " + name + " is not bound - the kernel runtime must install its instruction shims before translation maintenance runs"
}
