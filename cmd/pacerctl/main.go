// Command pacerctl is the process entrypoint: load a config file, wire
// up a robot description, and run the controller's tick loop until a
// signal asks it to stop.
//
// Grounded on the teacher's own main/main.go lifecycle (open resources,
// boot, ticker loop, signal-driven shutdown), replacing its flag-based
// CLI with cobra the way the example pack's own CLI-driven repo does.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/controller"
	"github.com/wojiaojiao/Pacer/math3d"
	"github.com/wojiaojiao/Pacer/model"
	"github.com/wojiaojiao/Pacer/model/fake"
	"github.com/wojiaojiao/Pacer/state"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "pacerctl"})

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pacerctl: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var ticks int

	cmd := &cobra.Command{
		Use:   "pacerctl",
		Short: "Run the quadruped locomotion controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, ticks)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults omitted options)")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "stop after this many ticks (0 = run until signaled)")
	return cmd
}

func run(configPath string, maxTicks int) error {
	cfg := controller.DefaultConfig()
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("pacerctl: open config: %w", err)
		}
		defer f.Close()
		cfg, err = controller.LoadConfig(f)
		if err != nil {
			return err
		}
	}

	km, joints, eefs, links := demoQuadruped()
	store := state.New()
	c, err := controller.NewController(km, joints, eefs, links, store, cfg)
	if err != nil {
		return fmt.Errorf("pacerctl: build controller: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	period := time.Duration(cfg.StepSize * float64(time.Second))
	t := time.NewTicker(period)
	defer t.Stop()

	log.WithFields(logrus.Fields{"period": period, "gait": cfg.Gait}).Info("pacerctl: starting tick loop")

	in := zeroInput(c, cfg.StepSize)
	n := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("pacerctl: signal received, stopping")
			return nil
		case <-t.C:
			out, err := c.Tick(in)
			if err != nil {
				log.WithError(err).Error("pacerctl: tick failed")
			}
			if out.Faulted {
				log.Warn("pacerctl: controller faulted, commanding zero torque")
			}
			n++
			if maxTicks > 0 && n >= maxTicks {
				log.WithField("ticks", n).Info("pacerctl: reached tick limit, stopping")
				return nil
			}
		}
	}
}

// demoQuadruped builds a standalone four-leg, three-DOF-per-leg robot
// description against the in-memory fake.KinematicModel, so this
// entrypoint runs without a real dynamics-engine binding -- spec.md §1
// keeps that engine an external collaborator this module only consumes
// through model.KinematicModel, and no such binding exists in this
// repo's scope.
func demoQuadruped() (model.KinematicModel, []model.Joint, []model.EndEffector, []model.Link) {
	legNames := []string{"LF", "RF", "LH", "RH"}
	km := fake.NewKinematicModel(len(legNames) * 3)

	var joints []model.Joint
	var eefs []model.EndEffector
	var links []model.Link

	for li, leg := range legNames {
		linkID := leg + "_foot"
		origin := [3]float64{float64(li)*0.3 - 0.3, 0, -0.3}
		km.LinkOffsets[linkID] = origin
		km.LinkAxes[linkID] = [][3]float64{
			{0, 0.05, 0},
			{0.05, 0, 0},
			{0, 0, 0.05},
		}

		for _, suffix := range []string{"_hip", "_knee", "_ankle"} {
			joints = append(joints, model.Joint{ID: leg + suffix, TorqueLimit: 5, Gains: model.PIDGains{Kp: 10, Kv: 1}})
		}
		eefs = append(eefs, model.EndEffector{
			ID: leg, LinkID: linkID,
			Chain:  []int{li * 3, li*3 + 1, li*3 + 2},
			Origin: math3d.Vector3{X: origin[0], Y: origin[1], Z: origin[2]},
		})
		links = append(links, model.Link{ID: linkID, Mass: 0.2})
	}
	links = append(links, model.Link{ID: "body", Mass: 2})
	km.LinkOffsets["body"] = [3]float64{0, 0, 0}

	return km, joints, eefs, links
}

// zeroInput feeds the controller a sensor frame with every joint at
// rest, so the demo loop runs stably without a live sensor feed.
func zeroInput(c *controller.Controller, dt float64) controller.Input {
	pos := map[string]*mat.VecDense{}
	vel := map[string]*mat.VecDense{}
	for _, j := range c.Joints {
		pos[j.ID] = mat.NewVecDense(1, nil)
		vel[j.ID] = mat.NewVecDense(1, nil)
	}
	return controller.Input{
		JointPositions:  pos,
		JointVelocities: vel,
		BasePose:        mat.NewVecDense(state.NEuler, nil),
		BaseTwist:       mat.NewVecDense(state.NSpatial, nil),
		Dt:              dt,
	}
}
