package main

import (
	"errors"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"robocore/core"
)

var errUsage = errors.New("wrong number of arguments")

// intArgs parses exactly n integer arguments
func intArgs(c *ishell.Context, n int) ([]int, bool) {
	if len(c.Args) != n {
		c.Err(errUsage)
		return nil, false
	}
	out := make([]int, n)
	for i, s := range c.Args {
		v, err := strconv.Atoi(s)
		if err != nil {
			c.Err(err)
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (a *app) register(shell *ishell.Shell) {
	shell.AddCmd(&ishell.Cmd{
		Name: "dict",
		Help: "print the firmware dictionary",
		Func: func(c *ishell.Context) {
			a.robot.PrintDictionary(shellWriter{c})
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "encoders",
		Help: "encoders - print both encoder counts",
		Func: func(c *ishell.Context) {
			for id := 0; id < a.encoderCount(); id++ {
				rep, err := a.robot.EncoderPosition(id)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("encoder %d: %d\n", rep.ID, rep.Position)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "motor",
		Help: "motor <id> [percent] - set or show a motor duty",
		Func: func(c *ishell.Context) {
			args, ok := intArgs(c, len(c.Args))
			if !ok {
				return
			}
			if len(args) < 1 || len(args) > 2 {
				c.Err(errUsage)
				return
			}
			if len(args) == 2 {
				if err := a.robot.SetMotorDuty(args[0], args[1]); err != nil {
					c.Err(err)
					return
				}
			}
			st, err := a.robot.MotorState(args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("motor %d: %d%% (compare %d)\n", st.ID, st.Value, st.Compare)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "servo",
		Help: "servo <id> [degree] - move or show a servo (1..3)",
		Func: func(c *ishell.Context) {
			args, ok := intArgs(c, len(c.Args))
			if !ok {
				return
			}
			if len(args) < 1 || len(args) > 2 {
				c.Err(errUsage)
				return
			}
			if len(args) == 2 {
				if err := a.robot.MoveServo(args[0], args[1]); err != nil {
					c.Err(err)
					return
				}
			}
			st, err := a.robot.ServoState(args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("servo %d: %d deg (compare %d)\n", st.ID, st.Value, st.Compare)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stream",
		Help: "stream <id> <ms> - report an encoder every ms (0 stops)",
		Func: func(c *ishell.Context) {
			args, ok := intArgs(c, 2)
			if !ok {
				return
			}
			interval := time.Duration(args[1]) * time.Millisecond
			if err := a.robot.StreamEncoder(args[0], interval); err != nil {
				c.Err(err)
				return
			}
			a.printReports.Store(interval > 0)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "emergency stop: all outputs to default",
		Func: func(c *ishell.Context) {
			if err := a.robot.EmergencyStop(); err != nil {
				c.Err(err)
				return
			}
			c.Println("stopped")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "motordemo",
		Help: "motordemo <id> - a/d lower/raise duty, q quits",
		Func: func(c *ishell.Context) {
			args, ok := intArgs(c, 1)
			if !ok {
				return
			}
			st, err := a.robot.MotorState(args[0])
			if err != nil {
				c.Err(err)
				return
			}
			percent := st.Value
			a.keyLoop(c, func(key rune) error {
				percent = stepMotor(percent, key, a.config.Demo.MotorStep)
				c.Printf("motor %d: %d%%\n", args[0], percent)
				return a.robot.SetMotorDuty(args[0], percent)
			})
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "servodemo",
		Help: "servodemo <id> - a/d turn the servo, q quits",
		Func: func(c *ishell.Context) {
			args, ok := intArgs(c, 1)
			if !ok {
				return
			}
			st, err := a.robot.ServoState(args[0])
			if err != nil {
				c.Err(err)
				return
			}
			degree := st.Value
			a.keyLoop(c, func(key rune) error {
				degree = stepServo(degree, key, a.config.Demo.ServoStep)
				c.Printf("servo %d: %d deg\n", args[0], degree)
				return a.robot.MoveServo(args[0], degree)
			})
		},
	})

	if a.board != nil {
		shell.AddCmd(&ishell.Cmd{
			Name: "turn",
			Help: "turn <id> <steps> - rotate a simulated encoder",
			Func: func(c *ishell.Context) {
				args, ok := intArgs(c, 2)
				if !ok {
					return
				}
				if err := a.board.Turn(core.EncoderID(args[0]), args[1]); err != nil {
					c.Err(err)
				}
			},
		})
	}
}

// keyLoop reads lines and feeds each a/d key to fn until q or EOF
func (a *app) keyLoop(c *ishell.Context, fn func(rune) error) {
	c.ShowPrompt(false)
	defer c.ShowPrompt(true)

	for {
		line := c.ReadLine()
		if line == "" {
			return
		}
		for _, key := range line {
			if key == keyQuit {
				return
			}
			if key != keyDown && key != keyUp {
				continue
			}
			if err := fn(key); err != nil {
				c.Err(err)
				return
			}
		}
	}
}

// shellWriter adapts an ishell shell or context to io.Writer
type shellWriter struct {
	c interface{ Print(val ...interface{}) }
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.c.Print(string(p))
	return len(p), nil
}
