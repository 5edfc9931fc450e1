package manager_test

import (
	"context"
	"fmt"
	"log"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
	"github.com/UTNuclearRobotics/skiros2/pkg/skill"
)

// ExampleManager_ExecuteTask builds a two step task from a library defined
// in YAML and follows its progress until the root finishes.
func ExampleManager_ExecuteTask() {
	defs, err := skill.Parse([]byte(`
skills:
  - type: Open
    behavior: set
    params: {key: door, value: open}
  - type: Drive
    behavior: wait
    options: {ticks: 2}
`))
	if err != nil {
		log.Fatal(err)
	}
	lib := skill.NewLibrary()
	if err := lib.Define(defs...); err != nil {
		log.Fatal(err)
	}

	m, err := manager.New("example_robot", lib, manager.WithTickRate(200))
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	defer m.Shutdown(ctx)

	events, cancel := m.Subscribe(0)
	defer cancel()

	id, err := m.AddTask([]domain.SkillSpec{{Type: "Open"}, {Type: "Drive"}})
	if err != nil {
		log.Fatal(err)
	}
	if err := m.ExecuteTask(id, false); err != nil {
		log.Fatal(err)
	}

	for ev := range events {
		if ev.TaskID == id && ev.Done() {
			root, _ := ev.Snapshot.Root()
			fmt.Println(root.Label, root.State)
			break
		}
	}
	door, _ := m.WorldModel().Get(ctx, "door")
	fmt.Println("door:", door)

	// Output:
	// task_0 Success
	// door: open
}
