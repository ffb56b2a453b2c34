package optimize

import "github.com/beevik/etree"

// Default subtrees inserted when a descriptor from an older generator
// version is missing them. Values mirror the generator's own world
// template so a patched descriptor behaves like a freshly generated one.

func defaultPhysics() *etree.Element {
	physics := etree.NewElement("physics")
	physics.CreateAttr("name", "default_physics")
	physics.CreateAttr("default", "0")
	physics.CreateAttr("type", "ode")
	physics.CreateElement("gravity").SetText("0 0 -9.8066")

	ode := physics.CreateElement("ode")
	solver := ode.CreateElement("solver")
	solver.CreateElement("type").SetText("quick")
	solver.CreateElement("iters").SetText("10")
	solver.CreateElement("sor").SetText("1.3")

	constraints := ode.CreateElement("constraints")
	constraints.CreateElement("cfm").SetText("0")
	constraints.CreateElement("erp").SetText("0.2")
	constraints.CreateElement("contact_max_correcting_vel").SetText("100")
	constraints.CreateElement("contact_surface_layer").SetText("0.001")

	physics.CreateElement("max_step_size").SetText("0.004")
	physics.CreateElement("real_time_factor").SetText("1")
	physics.CreateElement("real_time_update_rate").SetText("250")
	return physics
}

func defaultScene() *etree.Element {
	scene := etree.NewElement("scene")
	scene.CreateElement("ambient").SetText("0.4 0.4 0.4 1")
	scene.CreateElement("background").SetText("0.7 0.7 0.7 1")
	scene.CreateElement("shadows").SetText("1")
	return scene
}
