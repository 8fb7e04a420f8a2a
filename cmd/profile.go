package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zdunecki/internnav/pkg/api"
	"github.com/zdunecki/internnav/pkg/profile"
	"github.com/zdunecki/internnav/pkg/session"
)

var (
	setName      string
	setEducation string
	setField     string
	applyResume  bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := current()
		if err != nil {
			return err
		}
		p, err := authorized(sess).Profile(cmd.Context(), sess.Email)
		if err != nil {
			return expired(err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Name\t%s\n", p.Name)
		fmt.Fprintf(tw, "Email\t%s\n", p.Email)
		fmt.Fprintf(tw, "Education\t%s\n", p.HighestQualification)
		fmt.Fprintf(tw, "Field of study\t%s\n", p.FieldOfStudy)
		fmt.Fprintf(tw, "Skills\t%s\n", strings.Join(profile.Skills(p.Skills), ", "))
		if tags := profile.PreferenceTags(p.PreferenceTags); len(tags) > 0 {
			fmt.Fprintf(tw, "Preferences\t%s\n", strings.Join(tags, ", "))
		}
		return tw.Flush()
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change profile fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := current()
		if err != nil {
			return err
		}
		update := api.ProfileUpdate{Email: sess.Email}
		if cmd.Flags().Changed("name") {
			update.Name = &setName
		}
		if cmd.Flags().Changed("education") {
			update.HighestQualification = &setEducation
		}
		if cmd.Flags().Changed("field") {
			update.FieldOfStudy = &setField
		}
		if update.Empty() {
			return fmt.Errorf("nothing to change: pass --name, --education or --field")
		}
		if err := saveProfile(cmd.Context(), sess, update); err != nil {
			return err
		}
		cmd.Println("Profile updated.")
		return nil
	},
}

var addSkillCmd = &cobra.Command{
	Use:   "add-skill <skill>",
	Short: "Add a skill to your profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSkills(cmd, func(csv string) (string, bool) { return profile.AddSkill(csv, args[0]) })
	},
}

var removeSkillCmd = &cobra.Command{
	Use:   "remove-skill <skill>",
	Short: "Remove a skill from your profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSkills(cmd, func(csv string) (string, bool) { return profile.RemoveSkill(csv, args[0]) })
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <file>",
	Short: "Extract skills from a PDF or Word resume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.CheckResumePath(args[0]); err != nil {
			return err
		}
		sess, err := current()
		if err != nil {
			return err
		}
		res, err := authorized(sess).UploadResume(cmd.Context(), args[0])
		if err != nil {
			return expired(err)
		}

		out := cmd.OutOrStdout()
		if res.Name != "" {
			fmt.Fprintf(out, "Name:   %s\n", res.Name)
		}
		if len(res.Skills) == 0 {
			fmt.Fprintln(out, "No skills were found in the resume.")
		} else {
			fmt.Fprintf(out, "Skills: %s\n", res.SkillList())
		}
		if !applyResume {
			return nil
		}

		if err := saveProfile(cmd.Context(), sess, profile.ApplyResume(sess.Email, res)); err != nil {
			return err
		}
		cmd.Println("Profile updated from resume.")
		return nil
	},
}

func init() {
	profileSetCmd.Flags().StringVar(&setName, "name", "", "Full name")
	profileSetCmd.Flags().StringVar(&setEducation, "education", "", "Highest qualification")
	profileSetCmd.Flags().StringVar(&setField, "field", "", "Field of study")
	resumeCmd.Flags().BoolVar(&applyResume, "apply", false, "Replace profile name and skills with the extracted ones")

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(addSkillCmd)
	profileCmd.AddCommand(removeSkillCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(resumeCmd)
}

func editSkills(cmd *cobra.Command, edit func(string) (string, bool)) error {
	sess, err := current()
	if err != nil {
		return err
	}
	p, err := authorized(sess).Profile(cmd.Context(), sess.Email)
	if err != nil {
		return expired(err)
	}
	skills, changed := edit(p.Skills)
	if !changed {
		cmd.Println("Skills unchanged.")
		return nil
	}
	if err := saveProfile(cmd.Context(), sess, api.ProfileUpdate{Email: sess.Email, Skills: &skills}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Skills: %s\n", skills)
	return nil
}

// saveProfile sends update and keeps the session's name in step.
func saveProfile(ctx context.Context, sess *session.Session, update api.ProfileUpdate) error {
	if err := authorized(sess).UpdateProfile(ctx, update); err != nil {
		return expired(err)
	}
	if update.Name == nil {
		return nil
	}
	before := sess.Name
	sess.Rename(*update.Name)
	if sess.Name == before {
		return nil
	}
	return store.Save(sess)
}
