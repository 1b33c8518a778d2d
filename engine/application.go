package engine

type ApplicationConfig struct {
	// The application name reported to the Vulkan instance.
	Name string
	// Color the frame is cleared to before drawing.
	ClearColor [4]float32
}
